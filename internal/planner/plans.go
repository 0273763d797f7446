package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPlanNotFound is returned for unknown saved plan ids.
var ErrPlanNotFound = errors.New("plan not found")

// SavedPlan is a persisted selection. ObjectiveCodes runs parallel to
// Objectives so a plan still restores after ids are regenerated upstream.
type SavedPlan struct {
	ID             string    `json:"plan_id"`
	Name           string    `json:"name"`
	SourceIDs      []string  `json:"source_ids"`
	Objectives     []string  `json:"objective_ids"`
	ObjectiveCodes []string  `json:"objective_codes"`
	WholeTopics    []string  `json:"whole_topics"`
	Fingerprint    string    `json:"fingerprint"`
	TotalHours     int       `json:"total_hours"`
	SavedAt        time.Time `json:"saved_at"`
}

// PlanStore persists saved plans.
type PlanStore interface {
	SavePlan(ctx context.Context, plan SavedPlan) (SavedPlan, error)
	GetPlan(ctx context.Context, id string) (SavedPlan, error)
}

// MemoryPlanStore is an in-memory PlanStore.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]SavedPlan
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string]SavedPlan)}
}

func (s *MemoryPlanStore) SavePlan(_ context.Context, plan SavedPlan) (SavedPlan, error) {
	if len(plan.SourceIDs) == 0 {
		return SavedPlan{}, fmt.Errorf("source_ids is required")
	}
	plan.ID = uuid.NewString()
	if plan.SavedAt.IsZero() {
		plan.SavedAt = time.Now()
	}

	s.mu.Lock()
	s.plans[plan.ID] = plan
	s.mu.Unlock()
	return plan, nil
}

func (s *MemoryPlanStore) GetPlan(_ context.Context, id string) (SavedPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return SavedPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return plan, nil
}

const plansTableDDL = `CREATE TABLE IF NOT EXISTS saved_plans (
	id              UUID        PRIMARY KEY,
	name            TEXT        NOT NULL DEFAULT '',
	source_ids      TEXT[]      NOT NULL,
	objective_ids   TEXT[]      NOT NULL DEFAULT '{}',
	objective_codes TEXT[]      NOT NULL DEFAULT '{}',
	whole_topics    TEXT[]      NOT NULL DEFAULT '{}',
	fingerprint     TEXT        NOT NULL DEFAULT '',
	total_hours     INTEGER     NOT NULL DEFAULT 0,
	saved_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresPlanStore is a PostgreSQL-backed PlanStore.
type PostgresPlanStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanStore(pool *pgxpool.Pool) (*PostgresPlanStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresPlanStore{pool: pool}, nil
}

// EnsureSchema creates the saved_plans table if it does not exist.
func (s *PostgresPlanStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, plansTableDDL); err != nil {
		return fmt.Errorf("create saved_plans: %w", err)
	}
	return nil
}

func (s *PostgresPlanStore) SavePlan(ctx context.Context, plan SavedPlan) (SavedPlan, error) {
	if len(plan.SourceIDs) == 0 {
		return SavedPlan{}, fmt.Errorf("source_ids is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	savedAt := plan.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO saved_plans (id, name, source_ids, objective_ids, objective_codes, whole_topics, fingerprint, total_hours, saved_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id::text, saved_at`,
		uuid.NewString(),
		plan.Name,
		plan.SourceIDs,
		nonNil(plan.Objectives),
		nonNil(plan.ObjectiveCodes),
		nonNil(plan.WholeTopics),
		plan.Fingerprint,
		plan.TotalHours,
		savedAt,
	).Scan(&plan.ID, &plan.SavedAt)
	if err != nil {
		return SavedPlan{}, fmt.Errorf("insert plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresPlanStore) GetPlan(ctx context.Context, id string) (SavedPlan, error) {
	if uuid.Validate(id) != nil {
		return SavedPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var plan SavedPlan
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, source_ids, objective_ids, objective_codes, whole_topics, fingerprint, total_hours, saved_at
		 FROM saved_plans
		 WHERE id = $1::uuid`,
		id,
	).Scan(
		&plan.ID,
		&plan.Name,
		&plan.SourceIDs,
		&plan.Objectives,
		&plan.ObjectiveCodes,
		&plan.WholeTopics,
		&plan.Fingerprint,
		&plan.TotalHours,
		&plan.SavedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SavedPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		return SavedPlan{}, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
