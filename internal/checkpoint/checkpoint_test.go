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

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "last_run.json"))

	if err := s.Save("2026-01-15T10:00:00Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Load(); got != "2026-01-15T10:00:00Z" {
		t.Errorf("Load() = %q", got)
	}
}

// TestLoad_MissingFile verifies the 24-hour fallback window for fresh
// deployments.
func TestLoad_MissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	got, err := time.Parse(time.RFC3339, s.Load())
	if err != nil {
		t.Fatalf("fallback not RFC3339: %v", err)
	}
	age := time.Since(got)
	if age < 23*time.Hour || age > 25*time.Hour {
		t.Errorf("fallback age = %v, want ~24h", age)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_run.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := time.Parse(time.RFC3339, NewStore(path).Load()); err != nil {
		t.Errorf("corrupt file should fall back to a parseable timestamp: %v", err)
	}
}
