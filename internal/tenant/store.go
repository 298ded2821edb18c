// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tenant resolves per-tenant integration credentials, vehicle
// catalog mappings, and vehicle readiness. The search engine only asks
// "do I have a client for this adapter"; key provisioning and rotation
// live elsewhere.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshintel/parts-engine/pkg/types"
)

// Store is the SQLite-backed resolver.
type Store struct {
	db *sql.DB
}

// Open opens or creates the tenant registry database and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("tenant db path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening tenant database: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("creating tenant schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			tenant_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			endpoint TEXT,
			api_key TEXT,
			username TEXT,
			password TEXT,
			model TEXT,
			last_used_at TEXT,
			PRIMARY KEY (tenant_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS vehicle_mappings (
			vehicle_id TEXT PRIMARY KEY,
			manufacturer_alias TEXT,
			model_alias TEXT,
			category_alias TEXT,
			namespace TEXT,
			graph_manufacturer_id TEXT,
			graph_model_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS vehicle_status (
			vehicle_id TEXT PRIMARY KEY,
			status TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// platformTenant is the tenant_id of platform-shared credential rows.
const platformTenant = ""

// Credentials returns the tenant's own credentials for one integration,
// or nil when the tenant has none. Resolution stamps last_used_at: the
// only persisted side effect of running a search.
func (s *Store) Credentials(ctx context.Context, tenantID string, kind types.IntegrationKind) (*types.Credentials, error) {
	return s.lookup(ctx, tenantID, kind, false)
}

// CredentialsWithFallback resolves the tenant's own credentials first
// and falls back to the platform-shared row for that integration.
func (s *Store) CredentialsWithFallback(ctx context.Context, tenantID string, kind types.IntegrationKind) (*types.Credentials, error) {
	creds, err := s.lookup(ctx, tenantID, kind, false)
	if err != nil || creds != nil {
		return creds, err
	}
	return s.lookup(ctx, platformTenant, kind, true)
}

func (s *Store) lookup(ctx context.Context, tenantID string, kind types.IntegrationKind, shared bool) (*types.Credentials, error) {
	var c types.Credentials
	var endpoint, apiKey, username, password, model sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT endpoint, api_key, username, password, model
		 FROM credentials WHERE tenant_id = ? AND kind = ?`,
		tenantID, string(kind),
	).Scan(&endpoint, &apiKey, &username, &password, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s credentials: %w", kind, err)
	}

	c.Endpoint = endpoint.String
	c.APIKey = apiKey.String
	c.Username = username.String
	c.Password = password.String
	c.Model = model.String
	c.Shared = shared

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET last_used_at = ? WHERE tenant_id = ? AND kind = ?`,
		now, tenantID, string(kind),
	); err != nil {
		return nil, fmt.Errorf("stamping %s credentials: %w", kind, err)
	}
	return &c, nil
}

// PutCredentials inserts or replaces one credential row. Use an empty
// tenantID for a platform-shared row.
func (s *Store) PutCredentials(ctx context.Context, tenantID string, kind types.IntegrationKind, c types.Credentials) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO credentials (tenant_id, kind, endpoint, api_key, username, password, model)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenantID, string(kind), c.Endpoint, c.APIKey, c.Username, c.Password, c.Model,
	)
	if err != nil {
		return fmt.Errorf("storing %s credentials: %w", kind, err)
	}
	return nil
}

// Mapping returns the vehicle's catalog mapping, or nil when the
// vehicle is unmapped: the adapters then search unscoped.
func (s *Store) Mapping(ctx context.Context, vehicleID string) (*types.CatalogMapping, error) {
	var m types.CatalogMapping
	var manufacturer, model, category, namespace, graphManufacturer, graphModel sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT manufacturer_alias, model_alias, category_alias, namespace, graph_manufacturer_id, graph_model_id
		 FROM vehicle_mappings WHERE vehicle_id = ?`, vehicleID,
	).Scan(&manufacturer, &model, &category, &namespace, &graphManufacturer, &graphModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving mapping for vehicle %s: %w", vehicleID, err)
	}
	m.VehicleID = vehicleID
	m.ManufacturerAlias = manufacturer.String
	m.ModelAlias = model.String
	m.CategoryAlias = category.String
	m.Namespace = namespace.String
	m.GraphManufacturerID = graphManufacturer.String
	m.GraphModelID = graphModel.String
	return &m, nil
}

// PutMapping inserts or replaces one vehicle mapping.
func (s *Store) PutMapping(ctx context.Context, m types.CatalogMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vehicle_mappings
		 (vehicle_id, manufacturer_alias, model_alias, category_alias, namespace, graph_manufacturer_id, graph_model_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.VehicleID, m.ManufacturerAlias, m.ModelAlias, m.CategoryAlias,
		m.Namespace, m.GraphManufacturerID, m.GraphModelID,
	)
	if err != nil {
		return fmt.Errorf("storing mapping for vehicle %s: %w", m.VehicleID, err)
	}
	return nil
}

// VehicleStatus returns the vehicle's search-configuration status.
// Unknown vehicles report StatusUnknown, which the orchestrator treats
// as not ready.
func (s *Store) VehicleStatus(ctx context.Context, vehicleID string) (types.VehicleStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM vehicle_status WHERE vehicle_id = ?`, vehicleID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StatusUnknown, nil
	}
	if err != nil {
		return types.StatusUnknown, fmt.Errorf("resolving status for vehicle %s: %w", vehicleID, err)
	}
	return types.VehicleStatus(status), nil
}

// PutVehicleStatus inserts or replaces one vehicle status row.
func (s *Store) PutVehicleStatus(ctx context.Context, vehicleID string, status types.VehicleStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vehicle_status (vehicle_id, status) VALUES (?, ?)`,
		vehicleID, string(status),
	)
	if err != nil {
		return fmt.Errorf("storing status for vehicle %s: %w", vehicleID, err)
	}
	return nil
}
