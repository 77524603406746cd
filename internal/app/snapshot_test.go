package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hylla/tracktask/internal/domain"
)

func TestExportSnapshotRoundTripsIntoEmptyStore(t *testing.T) {
	source := newFakeRepo()
	svc := NewService(source, sequentialIDs(), fixedClock)
	ctx := context.Background()
	for _, in := range []CreateTaskInput{
		{Title: "write", OwnerID: "ana", Category: domain.CategoryTodo},
		{Title: "ship", OwnerID: "ana", Category: domain.CategoryDone, Description: "release notes"},
		{Title: "plan", OwnerID: "ana", Category: domain.CategoryTodo},
		{Title: "other", OwnerID: "bob"},
	} {
		if _, err := svc.CreateTask(ctx, in); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	snap, err := svc.ExportSnapshot(ctx, "ana")
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || snap.OwnerID != "ana" {
		t.Fatalf("unexpected header %#v", snap)
	}
	if len(snap.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snap.Tasks))
	}
	if snap.Tasks[0].Title != "write" || snap.Tasks[1].Title != "plan" || snap.Tasks[2].Title != "ship" {
		t.Fatalf("unexpected snapshot order %#v", snap.Tasks)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	target := newFakeRepo()
	importer := NewService(target, nil, fixedClock)
	if err := importer.ImportSnapshot(ctx, decoded); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	tasks, err := importer.ListTasks(ctx, "ana")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 imported tasks, got %d", len(tasks))
	}
	if got := target.tasks[snap.Tasks[2].ID]; got.Description != "release notes" || got.Category != domain.CategoryDone {
		t.Fatalf("unexpected imported task %#v", got)
	}

	decoded.Tasks[0].Title = "write more"
	if err := importer.ImportSnapshot(ctx, decoded); err != nil {
		t.Fatalf("ImportSnapshot(second) error = %v", err)
	}
	if got := target.tasks[decoded.Tasks[0].ID].Title; got != "write more" {
		t.Fatalf("expected upsert to update title, got %q", got)
	}
}

func TestSnapshotValidateRejectsBadInput(t *testing.T) {
	now := time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			name: "version",
			snap: Snapshot{Version: "other.v9"},
			want: "unsupported snapshot version",
		},
		{
			name: "missing id",
			snap: Snapshot{Tasks: []SnapshotTask{{Title: "x", OwnerID: "ana", Category: domain.CategoryTodo, CreatedAt: now}}},
			want: "tasks[0].id is required",
		},
		{
			name: "duplicate id",
			snap: Snapshot{Tasks: []SnapshotTask{
				{ID: "a", Title: "x", OwnerID: "ana", Category: domain.CategoryTodo, CreatedAt: now},
				{ID: "a", Title: "y", OwnerID: "ana", Category: domain.CategoryTodo, CreatedAt: now},
			}},
			want: "duplicate task id",
		},
		{
			name: "category",
			snap: Snapshot{Tasks: []SnapshotTask{{ID: "a", Title: "x", OwnerID: "ana", Category: "Backlog", CreatedAt: now}}},
			want: "invalid category",
		},
		{
			name: "owner",
			snap: Snapshot{Tasks: []SnapshotTask{{ID: "a", Title: "x", Category: domain.CategoryTodo, CreatedAt: now}}},
			want: "owner_id is required",
		},
	}
	for _, tc := range cases {
		err := tc.snap.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}

	inherited := Snapshot{OwnerID: "ana", Tasks: []SnapshotTask{{ID: "a", Title: "x", Category: "todo", CreatedAt: now}}}
	if err := inherited.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if inherited.Tasks[0].OwnerID != "ana" {
		t.Fatalf("expected task owner to default to snapshot owner")
	}
}
