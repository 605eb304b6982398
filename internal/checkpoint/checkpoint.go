// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checkpoint persists the last successful incremental sync time to
// a local JSON file. One timestamp, no history, no rollback.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Store reads and writes the checkpoint file.
type Store struct {
	path string
}

// fileFormat is the on-disk JSON shape.
type fileFormat struct {
	LastRunTime string `json:"last_run_time"`
}

// NewStore creates a checkpoint store at the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the last recorded run time. When the file is missing or
// unreadable, it falls back to 24 hours ago so a fresh deployment still
// syncs a sensible window.
func (s *Store) Load() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fallbackTime()
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil || f.LastRunTime == "" {
		return fallbackTime()
	}
	return f.LastRunTime
}

// Save overwrites the checkpoint with the given ISO-8601 timestamp.
func (s *Store) Save(isoTime string) error {
	data, err := json.Marshal(fileFormat{LastRunTime: isoTime})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.path, err)
	}
	return nil
}

func fallbackTime() string {
	return time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
}
