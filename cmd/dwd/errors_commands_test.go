package main

import "testing"

func TestErrorsClassify(t *testing.T) {
	out, _, err := runCLI(t, []string{"errors", "classify", "TimeoutError"}, "")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "TimeoutError: transient")
	requireContains(t, out, "retryable: yes")

	out, _, err = runCLI(t, []string{"errors", "classify", "Mystery", "--detail", "retry_type=resource"}, "")
	if err != nil {
		t.Fatalf("classify with detail: %v", err)
	}
	requireContains(t, out, "Mystery: resource")

	if _, _, err := runCLI(t, []string{"errors", "classify", "X", "--detail", "novalue"}, ""); err == nil {
		t.Fatal("expected error for malformed detail")
	}
}

func TestErrorsRules(t *testing.T) {
	out, _, err := runCLI(t, []string{"errors", "rules"}, "")
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	requireContains(t, out, "*timeout*")
	requireContains(t, out, "terminal")
}
