package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/samvad-hq/gidipin-go/pkg/gidipin"
)

func TestRenderJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, outputJSON, json.RawMessage(`{"verified":true,"pin":"080"}`)); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "{\n  \"verified\": true,\n  \"pin\": \"080\"\n}\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestRenderTableListsTopLevelFields(t *testing.T) {
	var buf bytes.Buffer
	raw := json.RawMessage(`{"pin":"080","verified":true,"meta":{"request_id":"r1"}}`)
	if err := render(&buf, outputTable, raw); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"pin", "080", "verified", "true", `{"request_id":"r1"}`} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "meta") > strings.Index(out, "verified") {
		t.Fatalf("fields should be sorted:\n%s", out)
	}
}

func TestRenderTableFallsBackForArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, outputTable, json.RawMessage(`[1,2]`)); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "[\n  1,\n  2\n]\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFormatError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&gidipin.Error{Message: "PIN not found", Code: gidipin.CodePINNotFound, StatusCode: 404}, "error: PIN not found (PIN_NOT_FOUND)"},
		{&gidipin.Error{Message: "request failed with status 502", StatusCode: 502}, "error: request failed with status 502"},
		{errors.New("boom"), "error: boom"},
	}
	for _, tc := range cases {
		if got := formatError(tc.err); got != tc.want {
			t.Fatalf("formatError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
