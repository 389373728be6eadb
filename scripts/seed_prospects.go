// seed_prospects.go loads investors, targets and industries from a YAML fixture into
// Postgres and optionally triggers a full rescan.
//
// Usage:
//
//	go run scripts/seed_prospects.go -fixture prospects.yaml -db postgres://localhost/matchmaker -rescan http://localhost:8700
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

type fixture struct {
	Industries []industry `yaml:"industries"`
	Investors  []entity   `yaml:"investors"`
	Targets    []entity   `yaml:"targets"`
}

type industry struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	ParentID  *int64 `yaml:"parent_id"`
	Canonical *bool  `yaml:"canonical"`
}

// entity holds the user-entered fields as loose YAML values; they are stored as JSON
// in whatever shape the fixture gives them.
type entity struct {
	Name                string      `yaml:"name"`
	Inactive            bool        `yaml:"inactive"`
	Industries          interface{} `yaml:"industries"`
	PreferredIndustries interface{} `yaml:"preferred_industries"`
	HQCountry           interface{} `yaml:"hq_country"`
	TargetCountries     interface{} `yaml:"target_countries"`
	Purposes            interface{} `yaml:"purposes"`
	Currency            string      `yaml:"currency"`
	InvestmentRange     interface{} `yaml:"investment_range"`
	OwnershipConditions interface{} `yaml:"ownership_conditions"`
}

func jsonb(v interface{}) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("encode %v: %v", v, err)
	}
	return b
}

func main() {
	fixturePath := flag.String("fixture", "prospects.yaml", "path to YAML fixture")
	dbURL := flag.String("db", os.Getenv("MATCHMAKER_DATABASE_URL"), "Postgres URL")
	rescanURL := flag.String("rescan", "", "Matchmaker API base URL; triggers a full rescan when set")
	token := flag.String("token", os.Getenv("MATCHMAKER_ADMIN_TOKEN"), "admin token for the rescan call")
	actor := flag.String("actor", "seed", "X-User-ID header value")
	dryRun := flag.Bool("dry-run", false, "print the fixture without writing")
	flag.Parse()

	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("read fixture: %v", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		log.Fatalf("parse fixture: %v", err)
	}
	log.Printf("parsed %d industries, %d investors, %d targets from %s",
		len(fx.Industries), len(fx.Investors), len(fx.Targets), *fixturePath)

	if *dryRun {
		for _, inv := range fx.Investors {
			fmt.Printf("investor %s (industries=%s, countries=%s)\n", inv.Name, jsonb(inv.PreferredIndustries), jsonb(inv.TargetCountries))
		}
		for _, tgt := range fx.Targets {
			fmt.Printf("target %s (industries=%s, hq=%s)\n", tgt.Name, jsonb(tgt.Industries), jsonb(tgt.HQCountry))
		}
		return
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)

	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		for _, ind := range fx.Industries {
			canonical := ind.Canonical == nil || *ind.Canonical
			if _, err := tx.Exec(ctx, `
				INSERT INTO industries (id, name, parent_id, canonical) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id, canonical = EXCLUDED.canonical`,
				ind.ID, ind.Name, ind.ParentID, canonical); err != nil {
				return fmt.Errorf("industry %d: %w", ind.ID, err)
			}
		}
		for _, inv := range fx.Investors {
			if err := insertInvestor(ctx, tx, inv); err != nil {
				return err
			}
		}
		for _, tgt := range fx.Targets {
			if err := insertTarget(ctx, tx, tgt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seeded %d investors and %d targets", len(fx.Investors), len(fx.Targets))

	if *rescanURL != "" {
		triggerRescan(*rescanURL, *token, *actor)
	}
}

func insertInvestor(ctx context.Context, tx pgx.Tx, e entity) error {
	id := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO investors (id, name, active) VALUES ($1, $2, $3)`, id, e.Name, !e.Inactive); err != nil {
		return fmt.Errorf("investor %q: %w", e.Name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO investor_profiles (investor_id, company_name, industries, preferred_industries, hq_country, target_countries, purposes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, e.Name, jsonb(e.Industries), jsonb(e.PreferredIndustries), jsonb(e.HQCountry), jsonb(e.TargetCountries), jsonb(e.Purposes)); err != nil {
		return fmt.Errorf("investor profile %q: %w", e.Name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO investor_financial_profiles (investor_id, currency, investment_range, ownership_conditions)
		VALUES ($1, $2, $3, $4)`,
		id, e.Currency, jsonb(e.InvestmentRange), jsonb(e.OwnershipConditions)); err != nil {
		return fmt.Errorf("investor financials %q: %w", e.Name, err)
	}
	return nil
}

func insertTarget(ctx context.Context, tx pgx.Tx, e entity) error {
	id := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO targets (id, name, active) VALUES ($1, $2, $3)`, id, e.Name, !e.Inactive); err != nil {
		return fmt.Errorf("target %q: %w", e.Name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO target_profiles (target_id, company_name, industries, hq_country, reasons_for_ma)
		VALUES ($1, $2, $3, $4, $5)`,
		id, e.Name, jsonb(e.Industries), jsonb(e.HQCountry), jsonb(e.Purposes)); err != nil {
		return fmt.Errorf("target profile %q: %w", e.Name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO target_financial_profiles (target_id, currency, desired_investment, ownership_conditions)
		VALUES ($1, $2, $3, $4)`,
		id, e.Currency, jsonb(e.InvestmentRange), jsonb(e.OwnershipConditions)); err != nil {
		return fmt.Errorf("target financials %q: %w", e.Name, err)
	}
	return nil
}

func triggerRescan(baseURL, token, actor string) {
	req, err := http.NewRequest("POST", baseURL+"/api/v1/rescan", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		log.Fatalf("rescan request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", actor)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("rescan: %v", err)
	}
	defer resp.Body.Close()

	var job struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&job)
	log.Printf("rescan requested: status %d, job %s", resp.StatusCode, job.ID)
}
