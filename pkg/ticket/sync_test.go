package ticket

import "testing"

func TestDiffFieldsSkipsBothEmpty(t *testing.T) {
	existing := Ticket{Subject: "", Message: "hello", Status: ""}
	ext := External{Subject: "", Message: "hello", Status: ""}

	changes := diffFields(existing, ext)
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", changes)
	}
}

func TestDiffFieldsDetectsChange(t *testing.T) {
	existing := Ticket{Subject: "old subject", Message: "hello", Status: "open"}
	ext := External{Subject: "new subject", Message: "hello", Status: "closed"}

	changes := diffFields(existing, ext)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %v", changes)
	}

	want := map[string]bool{"subject": true, "status": true}
	for _, c := range changes {
		if !want[c] {
			t.Fatalf("unexpected change field %q", c)
		}
	}
}

func TestDiffFieldsTreatsEmptyAsAChangeWhenOtherSideIsSet(t *testing.T) {
	existing := Ticket{Subject: "has a subject"}
	ext := External{Subject: ""}

	changes := diffFields(existing, ext)
	if len(changes) != 1 || changes[0] != "subject" {
		t.Fatalf("expected subject to be flagged as changed, got %v", changes)
	}
}

func TestFieldValue(t *testing.T) {
	ext := External{Subject: "s", Message: "m", Status: "st"}

	if fieldValue(ext, "subject") != "s" {
		t.Fatal("expected subject value")
	}
	if fieldValue(ext, "message") != "m" {
		t.Fatal("expected message value")
	}
	if fieldValue(ext, "status") != "st" {
		t.Fatal("expected status value")
	}
	if fieldValue(ext, "unknown") != "" {
		t.Fatal("expected empty string for unknown field")
	}
}

func TestExistingFieldValue(t *testing.T) {
	existing := Ticket{Subject: "s", Message: "m", Status: "st"}

	if existingFieldValue(existing, "subject") != "s" {
		t.Fatal("expected subject value")
	}
	if existingFieldValue(existing, "message") != "m" {
		t.Fatal("expected message value")
	}
	if existingFieldValue(existing, "status") != "st" {
		t.Fatal("expected status value")
	}
	if existingFieldValue(existing, "unknown") != "" {
		t.Fatal("expected empty string for unknown field")
	}
}

func TestBuildChangeMapRecordsOldAndNew(t *testing.T) {
	existing := Ticket{Subject: "old subject", Message: "hello", Status: "open"}
	ext := External{Subject: "new subject", Message: "hello", Status: "closed"}

	changeMap := buildChangeMap(existing, ext, []string{"subject", "status"})

	if len(changeMap) != 2 {
		t.Fatalf("expected 2 entries, got %v", changeMap)
	}

	subject, ok := changeMap["subject"].(map[string]any)
	if !ok {
		t.Fatalf("expected subject entry to be a map, got %T", changeMap["subject"])
	}
	if subject["old"] != "old subject" || subject["new"] != "new subject" {
		t.Fatalf("expected {old: %q, new: %q}, got %v", "old subject", "new subject", subject)
	}

	status, ok := changeMap["status"].(map[string]any)
	if !ok {
		t.Fatalf("expected status entry to be a map, got %T", changeMap["status"])
	}
	if status["old"] != "open" || status["new"] != "closed" {
		t.Fatalf("expected {old: %q, new: %q}, got %v", "open", "closed", status)
	}
}
