package cost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// TestCostRecord is one finished test's entry in the per-test ledger.
type TestCostRecord struct {
	TestID           string    `json:"test_id"`
	TestName         string    `json:"test_name"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Calls            int       `json:"calls"`
	Cost             float64   `json:"cost"`
	Currency         string    `json:"currency"`
	Timestamp        time.Time `json:"timestamp"`
}

// DailyAggregate is one day's rollup in the cost history.
type DailyAggregate struct {
	Day       string  `json:"day"`
	TotalCost float64 `json:"total_cost"`
	TestCount int     `json:"test_count"`
}

// DayOf formats a timestamp as a history bucket key.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Store is the durable backend for the cost ledgers.
type Store interface {
	// AppendTestCost adds one record to the per-test ledger.
	AppendTestCost(ctx context.Context, rec TestCostRecord) error
	// LoadTestCosts returns every record in append order.
	LoadTestCosts(ctx context.Context) ([]TestCostRecord, error)
	// AddDailyCost folds one test's cost into its day bucket.
	AddDailyCost(ctx context.Context, day string, cost float64) error
	// LoadDailyAggregates returns all day buckets sorted by day.
	LoadDailyAggregates(ctx context.Context) ([]DailyAggregate, error)
}

const (
	testCostsFile   = "test_costs.json"
	costHistoryFile = "cost_history.json"
)

// FileStore keeps both ledgers as flat JSON files under one directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the ledger directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("ledger directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.Named("cost_store")}, nil
}

func (s *FileStore) AppendTestCost(ctx context.Context, rec TestCostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []TestCostRecord
	if err := s.readJSON(testCostsFile, &records); err != nil {
		return err
	}
	records = append(records, rec)
	return s.writeJSON(testCostsFile, records)
}

func (s *FileStore) LoadTestCosts(ctx context.Context) ([]TestCostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []TestCostRecord
	if err := s.readJSON(testCostsFile, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *FileStore) AddDailyCost(ctx context.Context, day string, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var days []DailyAggregate
	if err := s.readJSON(costHistoryFile, &days); err != nil {
		return err
	}

	updated := false
	for i := range days {
		if days[i].Day == day {
			days[i].TotalCost += cost
			days[i].TestCount++
			updated = true
			break
		}
	}
	if !updated {
		days = append(days, DailyAggregate{Day: day, TotalCost: cost, TestCount: 1})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	return s.writeJSON(costHistoryFile, days)
}

func (s *FileStore) LoadDailyAggregates(ctx context.Context) ([]DailyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var days []DailyAggregate
	if err := s.readJSON(costHistoryFile, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// readJSON loads a ledger file into out. A missing file is an empty ledger.
func (s *FileStore) readJSON(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read ledger %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse ledger %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", name, err)
	}
	return nil
}
