// Package store persists exams, graded results and the calibrated answer
// region as JSON files under a data directory:
//
//	exams/exam_<id>.json
//	results/<exam id>_<id>.json
//	images/templates/roi_config.json
//	images/uploads/
//	images/processed/<result id>.png
//	exports/
//
// A Store is safe for concurrent use within one process.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-grader/internal/omr"
)

var (
	// ErrNotFound is returned when an exam, result or region does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidExam is returned when an exam fails validation.
	ErrInvalidExam = errors.New("store: invalid exam")
)

const regionFile = "roi_config.json"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is a JSON file store rooted at a data directory.
type Store struct {
	root    string
	passing float64
	now     func() time.Time

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithPassingScore sets the percentage counted as a pass in Statistics.
func WithPassingScore(p float64) Option {
	return func(s *Store) { s.passing = p }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates the directory layout under root if needed.
func Open(root string, opts ...Option) (*Store, error) {
	s := &Store{root: root, passing: 75, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{s.ExamsDir(), s.ResultsDir(), s.TemplatesDir(), s.UploadsDir(), s.ProcessedDir(), s.ExportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return s, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) ExamsDir() string     { return filepath.Join(s.root, "exams") }
func (s *Store) ResultsDir() string   { return filepath.Join(s.root, "results") }
func (s *Store) TemplatesDir() string { return filepath.Join(s.root, "images", "templates") }
func (s *Store) UploadsDir() string   { return filepath.Join(s.root, "images", "uploads") }
func (s *Store) ProcessedDir() string { return filepath.Join(s.root, "images", "processed") }
func (s *Store) ExportsDir() string   { return filepath.Join(s.root, "exports") }

// newID returns prefix followed by eight hex digits.
func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return nil
}

// CreateExam validates e, assigns its ID and creation time and saves it.
func (s *Store) CreateExam(e *Exam) error {
	if err := e.normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = newID("exam_")
	e.CreatedAt = s.now().UTC()
	return writeJSON(s.examPath(e.ID), e)
}

// GetExam loads one exam.
func (s *Store) GetExam(id string) (*Exam, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Exam
	if err := readJSON(s.examPath(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExams returns every exam, newest first.
func (s *Store) ListExams() ([]*Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(s.ExamsDir(), "exam_*.json"))
	if err != nil {
		return nil, err
	}

	exams := make([]*Exam, 0, len(paths))
	for _, p := range paths {
		var e Exam
		if err := readJSON(p, &e); err != nil {
			return nil, err
		}
		exams = append(exams, &e)
	}
	sort.SliceStable(exams, func(i, j int) bool {
		if !exams[i].CreatedAt.Equal(exams[j].CreatedAt) {
			return exams[i].CreatedAt.After(exams[j].CreatedAt)
		}
		return exams[i].ID < exams[j].ID
	})
	return exams, nil
}

// UpdateExam replaces a stored exam. The ID and creation time are kept.
func (s *Store) UpdateExam(e *Exam) error {
	if err := checkID(e.ID); err != nil {
		return err
	}
	if err := e.normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var old Exam
	if err := readJSON(s.examPath(e.ID), &old); err != nil {
		return err
	}
	e.CreatedAt = old.CreatedAt
	return writeJSON(s.examPath(e.ID), e)
}

// DeleteExam removes an exam together with its results.
func (s *Store) DeleteExam(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := removeFile(s.examPath(id)); err != nil {
		return err
	}
	results, err := s.listResults(id)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, p := range []string{s.resultPath(r.ID), s.processedPath(r.ID)} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete result %s: %w", r.ID, err)
			}
		}
	}
	return nil
}

func (s *Store) examPath(id string) string {
	return filepath.Join(s.ExamsDir(), id+".json")
}

// SaveResult assigns the result an ID and timestamp and saves it. The exam
// must exist. When marked is not nil it is written as a PNG to the processed
// images directory and its path recorded in r.ProcessedImagePath.
func (s *Store) SaveResult(r *Result, marked image.Image) error {
	if err := checkID(r.ExamID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.examPath(r.ExamID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: exam %s", ErrNotFound, r.ExamID)
		}
		return err
	}

	r.ID = newID(r.ExamID + "_")
	r.ProcessedAt = s.now().UTC()

	if marked != nil {
		path := s.processedPath(r.ID)
		if err := imaging.Save(marked, path); err != nil {
			return fmt.Errorf("failed to save annotated image: %w", err)
		}
		r.ProcessedImagePath = path
	}
	if err := writeJSON(s.resultPath(r.ID), r); err != nil {
		if r.ProcessedImagePath != "" {
			os.Remove(r.ProcessedImagePath)
		}
		return err
	}
	return nil
}

// GetResult loads one result.
func (s *Store) GetResult(id string) (*Result, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Result
	if err := readJSON(s.resultPath(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResults returns the results of one exam, newest first.
func (s *Store) ListResults(examID string) ([]*Result, error) {
	if err := checkID(examID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listResults(examID)
}

func (s *Store) listResults(examID string) ([]*Result, error) {
	paths, err := filepath.Glob(filepath.Join(s.ResultsDir(), examID+"_*.json"))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(paths))
	for _, p := range paths {
		var r Result
		if err := readJSON(p, &r); err != nil {
			return nil, err
		}
		// An exam ID that prefixes another ("exam_1" vs "exam_1_x") must not
		// pick up the other's results.
		if r.ExamID != examID {
			continue
		}
		results = append(results, &r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].ProcessedAt.Equal(results[j].ProcessedAt) {
			return results[i].ProcessedAt.After(results[j].ProcessedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// DeleteResult removes one result and its annotated image.
func (s *Store) DeleteResult(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := removeFile(s.resultPath(id)); err != nil {
		return err
	}
	if err := os.Remove(s.processedPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete annotated image: %w", err)
	}
	return nil
}

func (s *Store) resultPath(id string) string {
	return filepath.Join(s.ResultsDir(), id+".json")
}

func (s *Store) processedPath(id string) string {
	return filepath.Join(s.ProcessedDir(), id+".png")
}

// Statistics summarizes the percentage scores of an exam's results. A result
// passes when its percentage reaches the passing score.
func (s *Store) Statistics(examID string) (*Statistics, error) {
	if err := checkID(examID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.listResults(examID)
	if err != nil {
		return nil, err
	}
	return computeStatistics(results, s.passing), nil
}

func computeStatistics(results []*Result, passing float64) *Statistics {
	st := &Statistics{TotalStudents: len(results), PassingScore: passing}
	if len(results) == 0 {
		return st
	}

	scores := make([]float64, len(results))
	passed := 0
	for i, r := range results {
		scores[i] = r.Score.Percentage
		if scores[i] >= passing {
			passed++
		}
	}
	st.AverageScore = stat.Mean(scores, nil)
	st.HighestScore = floats.Max(scores)
	st.LowestScore = floats.Min(scores)
	st.PassRate = float64(passed) / float64(len(results)) * 100
	return st
}

// LoadRegion reads the calibrated answer region.
func (s *Store) LoadRegion() (*omr.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r omr.Region
	if err := readJSON(filepath.Join(s.TemplatesDir(), regionFile), &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRegion stores the calibrated answer region.
func (s *Store) SaveRegion(r omr.Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.TemplatesDir(), regionFile), r)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeJSON writes v through a temporary file so readers never see a
// partial document.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return nil
}
