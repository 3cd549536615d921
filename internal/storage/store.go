package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

// Columns of trajectory.csv. goal is the 1-based episode index.
var Columns = []string{"step", "time", "x", "y", "theta", "true_x", "true_y", "true_theta", "rho", "left", "right", "goal"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Name       string
	Integrator string
	Dt         float64
	Start      odometry.Pose
}

type EpisodeSummary struct {
	Goal    goal.Target   `json:"goal"`
	Steps   int           `json:"steps"`
	Arrived bool          `json:"arrived"`
	Final   odometry.Pose `json:"final"`
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Integrator string             `json:"integrator"`
	Start      odometry.Pose      `json:"start"`
	Episodes   []EpisodeSummary   `json:"episodes"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Goals lists the episode goals in order.
func (m *RunMetadata) Goals() []goal.Target {
	out := make([]goal.Target, len(m.Episodes))
	for i, ep := range m.Episodes {
		out[i] = ep.Goal
	}
	return out
}

func (s *Store) Save(info RunInfo, result *mission.Result) (string, error) {
	now := time.Now()
	runID, runDir, err := s.allocate(fmt.Sprintf("%s_%d", dirName(info.Name), now.Unix()))
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Name:       info.Name,
		Timestamp:  now,
		Dt:         info.Dt,
		Integrator: info.Integrator,
		Start:      info.Start,
		Episodes:   make([]EpisodeSummary, len(result.Episodes)),
		Metrics:    result.Metrics,
	}
	for i, ep := range result.Episodes {
		meta.Episodes[i] = EpisodeSummary{Goal: ep.Goal, Steps: ep.Steps, Arrived: ep.Arrived, Final: ep.Final}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteCSV(f, result.Cycles()); err != nil {
		return "", errors.Wrap(err, "writing trajectory")
	}
	return runID, f.Close()
}

// dirName makes a scenario name safe to use as one path component.
func dirName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == os.PathSeparator, r == os.PathListSeparator:
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if strings.Trim(name, ".") == "" {
		return "run"
	}
	return name
}

// allocate creates a fresh run directory, suffixing id on collision.
func (s *Store) allocate(id string) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	candidate := id
	for n := 2; ; n++ {
		dir := filepath.Join(s.baseDir, candidate)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return candidate, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		candidate = fmt.Sprintf("%s_%d", id, n)
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// List returns stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New("no runs found")
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	return &meta, nil
}

// LoadTrajectory reads the cycles of a run. Goals are restored from the
// run metadata.
func (s *Store) LoadTrajectory(runID string) ([]mission.Cycle, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cycles, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	goals := meta.Goals()
	for i := range cycles {
		if ep := cycles[i].Episode; ep >= 1 && ep <= len(goals) {
			cycles[i].Goal = goals[ep-1]
		}
	}
	return cycles, nil
}

func WriteCSV(w io.Writer, cycles []mission.Cycle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, c := range cycles {
		row := []string{
			strconv.Itoa(c.Step),
			f(c.Time),
			f(c.Pose.X), f(c.Pose.Y), f(c.Pose.Theta),
			f(c.Truth.X), f(c.Truth.Y), f(c.Truth.Theta),
			f(c.Rho),
			strconv.Itoa(c.Command.Left),
			strconv.Itoa(c.Command.Right),
			strconv.Itoa(c.Episode),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) ([]mission.Cycle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []mission.Cycle{}, nil
	}

	cycles := make([]mission.Cycle, 0, len(records)-1)
	for i, rec := range records[1:] {
		var vals [12]float64
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", i+1, Columns[j])
			}
			vals[j] = v
		}
		cycles = append(cycles, mission.Cycle{
			Step:    int(vals[0]),
			Time:    vals[1],
			Pose:    odometry.Pose{X: vals[2], Y: vals[3], Theta: vals[4]},
			Truth:   odometry.Pose{X: vals[5], Y: vals[6], Theta: vals[7]},
			Rho:     vals[8],
			Command: goal.Command{Left: int(vals[9]), Right: int(vals[10])},
			Episode: int(vals[11]),
		})
	}
	return cycles, nil
}
