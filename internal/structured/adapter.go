// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package structured queries the tenant's relational parts catalog with
// derived keywords. It is the one adapter that is always available:
// every search fans out here first.
package structured

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

const (
	defaultMaxResults = 20
	defaultMaxRows    = 100
)

// Adapter searches the SQLite parts catalog.
type Adapter struct {
	db         *sql.DB
	maxResults int
	maxRows    int
}

// Open opens or creates the catalog database and ensures the schema
// exists.
func Open(cfg types.StructuredConfig) (*Adapter, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("catalog db path is required")
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	a, err := New(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an existing database handle and ensures the schema exists.
func New(db *sql.DB, cfg types.StructuredConfig) (*Adapter, error) {
	a := &Adapter{
		db:         db,
		maxResults: cfg.MaxResults,
		maxRows:    cfg.MaxRows,
	}
	if a.maxResults <= 0 {
		a.maxResults = defaultMaxResults
	}
	if a.maxRows <= 0 {
		a.maxRows = defaultMaxRows
	}
	if err := a.createSchema(); err != nil {
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return a, nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS parts (
			tenant_id TEXT NOT NULL,
			part_number TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT,
			subcategory TEXT,
			price REAL,
			stock_quantity INTEGER DEFAULT 0,
			active INTEGER DEFAULT 1,
			manufacturers TEXT,
			models TEXT,
			PRIMARY KEY (tenant_id, part_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_tenant ON parts(tenant_id, active)`,
	}
	for _, stmt := range statements {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Part is one catalog row, used for seeding and scoring.
type Part struct {
	TenantID      string
	PartNumber    string
	Description   string
	Category      string
	Subcategory   string
	Price         float64
	StockQuantity int
	Active        bool
	Manufacturers []string
	Models        []string
}

// Upsert inserts or replaces one catalog row.
func (a *Adapter) Upsert(ctx context.Context, p Part) error {
	mJSON, _ := json.Marshal(p.Manufacturers)
	mdJSON, _ := json.Marshal(p.Models)
	active := 0
	if p.Active {
		active = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO parts
		 (tenant_id, part_number, description, category, subcategory, price, stock_quantity, active, manufacturers, models)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TenantID, p.PartNumber, p.Description, p.Category, p.Subcategory,
		p.Price, p.StockQuantity, active, string(mJSON), string(mdJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting part %s: %w", p.PartNumber, err)
	}
	return nil
}

// Search runs the keyword query for one tenant. expandedTerms widen
// the LIKE conditions so a synonym-only row is still retrieved, but
// scoring stays anchored on the query's own keywords: a synonym match
// never outranks a direct one. A vehicle mapping, when present, is a
// required filter layered on top of the keyword OR conditions: a
// vehicle-scoped search must not return parts for a different vehicle
// even if textually similar.
func (a *Adapter) Search(ctx context.Context, queryText, tenantID string, vehicle *types.VehicleContext, mapping *types.CatalogMapping, expandedTerms []string) ([]types.PartCandidate, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	queryKeywords := textutil.Keywords(queryText)
	keywords := queryKeywords
	for _, term := range expandedTerms {
		keywords = textutil.UnionStrings(keywords, textutil.Keywords(term))
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	args = append(args, tenantID)
	for _, kw := range keywords {
		like := "%" + kw + "%"
		conds = append(conds,
			`(part_number LIKE ? OR description LIKE ? OR category LIKE ? OR subcategory LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	sqlQuery := `SELECT part_number, description, category, subcategory, price, stock_quantity, manufacturers, models
		 FROM parts WHERE tenant_id = ? AND active = 1 AND (` + strings.Join(conds, " OR ") + `)`

	if mapping != nil {
		if mapping.ManufacturerAlias != "" {
			sqlQuery += ` AND manufacturers LIKE ?`
			args = append(args, "%"+mapping.ManufacturerAlias+"%")
		}
		if mapping.ModelAlias != "" {
			sqlQuery += ` AND models LIKE ?`
			args = append(args, "%"+mapping.ModelAlias+"%")
		}
		if mapping.CategoryAlias != "" {
			sqlQuery += ` AND (category LIKE ? OR subcategory LIKE ?)`
			alias := "%" + mapping.CategoryAlias + "%"
			args = append(args, alias, alias)
		}
	}

	sqlQuery += fmt.Sprintf(` LIMIT %d`, a.maxRows)

	rows, err := a.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		var p Part
		var mJSON, mdJSON sql.NullString
		if err := rows.Scan(&p.PartNumber, &p.Description, &p.Category, &p.Subcategory,
			&p.Price, &p.StockQuantity, &mJSON, &mdJSON); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		if mJSON.Valid {
			json.Unmarshal([]byte(mJSON.String), &p.Manufacturers)
		}
		if mdJSON.Valid {
			json.Unmarshal([]byte(mdJSON.String), &p.Models)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog rows: %w", err)
	}

	phrase := strings.Join(queryKeywords, " ")
	queryPartNumbers := textutil.PartNumbers(queryText)

	candidates := make([]types.PartCandidate, 0, len(parts))
	for _, p := range parts {
		score := scorePart(p, phrase, queryKeywords, queryPartNumbers, expandedTerms, vehicle)
		candidates = append(candidates, toCandidate(p, score))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > a.maxResults {
		candidates = candidates[:a.maxResults]
	}
	return candidates, nil
}

// scorePart applies the tiered scoring policy: the tiers are exclusive
// (highest wins), the vehicle and stock bonuses are additive on top.
// Synonym phrases rank between a direct description match and a
// category match.
func scorePart(p Part, phrase string, keywords, queryPartNumbers, expandedTerms []string, vehicle *types.VehicleContext) float64 {
	rowPN := textutil.NormalizePartNumber(p.PartNumber)
	descLower := strings.ToLower(p.Description)
	catLower := strings.ToLower(p.Category + " " + p.Subcategory)

	var score float64
	switch {
	case matchesExact(rowPN, queryPartNumbers):
		score = 100
	case matchesSubstring(rowPN, strings.ToLower(p.PartNumber), queryPartNumbers, keywords):
		score = 80
	case phrase != "" && strings.Contains(descLower, phrase):
		score = 70
		if strings.HasPrefix(descLower, phrase) {
			score += 10
		}
	case matchesSynonym(descLower, expandedTerms):
		score = 60
	case phrase != "" && strings.Contains(catLower, phrase):
		score = 50
	default:
		matched := 0
		haystack := strings.ToLower(p.PartNumber) + " " + descLower + " " + catLower
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				matched++
			}
		}
		if len(keywords) > 0 {
			score = 40 * float64(matched) / float64(len(keywords))
		}
	}

	if vehicleCompatible(p, vehicle) {
		score += 20
	}
	if p.StockQuantity > 0 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func matchesExact(rowPN string, queryPartNumbers []string) bool {
	for _, qpn := range queryPartNumbers {
		if rowPN == textutil.NormalizePartNumber(qpn) {
			return true
		}
	}
	return false
}

func matchesSynonym(descLower string, expandedTerms []string) bool {
	for _, term := range expandedTerms {
		if t := strings.ToLower(term); t != "" && strings.Contains(descLower, t) {
			return true
		}
	}
	return false
}

func matchesSubstring(rowPN, rowPNLower string, queryPartNumbers, keywords []string) bool {
	for _, qpn := range queryPartNumbers {
		if n := textutil.NormalizePartNumber(qpn); n != "" && strings.Contains(rowPN, n) {
			return true
		}
	}
	for _, kw := range keywords {
		if strings.Contains(rowPNLower, kw) {
			return true
		}
	}
	return false
}

func vehicleCompatible(p Part, vehicle *types.VehicleContext) bool {
	if vehicle == nil {
		return false
	}
	if vehicle.Make != "" {
		for _, m := range p.Manufacturers {
			if strings.EqualFold(m, vehicle.Make) {
				return true
			}
		}
	}
	if vehicle.Model != "" {
		for _, m := range p.Models {
			if strings.EqualFold(m, vehicle.Model) {
				return true
			}
		}
	}
	return false
}

func toCandidate(p Part, score float64) types.PartCandidate {
	c := types.PartCandidate{
		PartNumber:    p.PartNumber,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		Score:         score,
		Source:        types.SourceStructured,
		Compatibility: types.Compatibility{
			Manufacturers: p.Manufacturers,
			Models:        p.Models,
		},
	}
	if p.Category != "" {
		c.Compatibility.Categories = []string{p.Category}
		if p.Subcategory != "" {
			c.Metadata.CategoryPath = p.Category + " > " + p.Subcategory
		}
	}
	return c
}
