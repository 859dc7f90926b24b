package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// torqueSubdirCount is the number of numbered shard directories a sharded
// Torque spool maintains (0 .. 9).
const torqueSubdirCount = 10

// torque implements Scheduler for the Torque/PBS spool layout: job scripts
// are flat files named <id>.SC, with optional <id>.TA (array job marker)
// and <id>.JB (job description) companions in the same directory.
type torque struct {
	spool   string
	subdirs bool
}

func (t *torque) Kind() Kind { return Torque }

// WatchTargets returns the spool root itself, or the numbered shard
// directories 0..9 when the sharded layout is configured.
func (t *torque) WatchTargets() ([]string, error) {
	if err := checkDir(t.spool); err != nil {
		return nil, err
	}

	if !t.subdirs {
		return []string{t.spool}, nil
	}

	targets := make([]string, 0, torqueSubdirCount)

	for sd := range torqueSubdirCount {
		dir := filepath.Join(t.spool, strconv.Itoa(sd))
		if err := checkDir(dir); err != nil {
			return nil, err
		}

		targets = append(targets, dir)
	}

	return targets, nil
}

// Relevant reports whether path names a Torque job script: the .SC
// extension. The check is name-only — the path may already be gone for
// removal events, and collection reads the file (or fails) afterwards.
func (t *torque) Relevant(path string) bool {
	return filepath.Ext(path) == ".SC"
}

// CollectJob reads the job script plus any accompanying .TA and .JB files.
// Array jobs carry a .TA marker and one JB file per array element, named
// <seq>-<element>.<server>.JB.
func (t *torque) CollectJob(ctx context.Context, path string) (*Job, error) {
	filename := filepath.Base(path)
	jobID := strings.TrimSuffix(filename, ".SC")

	if err := waitForFile(ctx, path, path); err != nil {
		return nil, err
	}

	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheduler: reading %s: %w", path, err)
	}

	job := &Job{
		ID:     jobID,
		Script: script,
		Env:    make(map[string]string),
		Files: []File{
			{Name: filename, Data: script, Source: path},
		},
	}

	if err := t.collectCompanions(job, path); err != nil {
		return nil, err
	}

	return job, nil
}

// collectCompanions gathers the .TA and .JB files belonging to the job and
// records them both as archive files and as extra info keyed by filename.
func (t *torque) collectCompanions(job *Job, scriptPath string) error {
	dir := filepath.Dir(scriptPath)
	stem := strings.TrimSuffix(scriptPath, ".SC")

	taPath := stem + ".TA"
	if _, err := os.Stat(taPath); err == nil {
		if err := appendCompanion(job, taPath); err != nil {
			return err
		}

		// Array job: one JB file per element, <seq>-<element>.<server>.JB.
		seq, _, _ := strings.Cut(filepath.Base(scriptPath), ".")

		jbPaths, err := filepath.Glob(filepath.Join(dir, seq+"-*.JB"))
		if err != nil {
			return fmt.Errorf("scheduler: globbing array JB files for %s: %w", job.ID, err)
		}

		for _, jbPath := range jbPaths {
			if err := appendCompanion(job, jbPath); err != nil {
				return err
			}
		}

		return nil
	}

	jbPath := stem + ".JB"
	if _, err := os.Stat(jbPath); err == nil {
		return appendCompanion(job, jbPath)
	}

	return nil
}

func appendCompanion(job *Job, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scheduler: reading %s: %w", path, err)
	}

	name := filepath.Base(path)
	job.Files = append(job.Files, File{Name: name, Data: data, Source: path})
	job.Env[name] = string(data)

	return nil
}
