package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/ClaimSightAI/claimsight-mvp/engine/reason"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Generate(_ context.Context, _, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func TestKeywordExtract(t *testing.T) {
	llm := &stubLLM{response: `{"incident_type":"collision","damage_severity":"major","keywords":["bumper","windshield"]}`}
	e := NewKeywordExtractor(llm, "llama3", discardLogger())

	got, err := e.Extract(context.Background(), "Hit a divider, bumper torn off and windshield shattered")
	if err != nil {
		t.Fatal(err)
	}
	want := Keywords{IncidentType: "collision", DamageSeverity: "major", Keywords: []string{"bumper", "windshield"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(llm.prompt, "Accident description") {
		t.Error("prompt missing description section")
	}
}

func TestKeywordExtractNonJSONFallsBack(t *testing.T) {
	llm := &stubLLM{response: "Sure! Here are the keywords you asked for."}
	e := NewKeywordExtractor(llm, "llama3", discardLogger())

	got, err := e.Extract(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if got.IncidentType != "unknown" || got.DamageSeverity != "unknown" || len(got.Keywords) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestKeywordExtractTransportError(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}
	e := NewKeywordExtractor(llm, "llama3", discardLogger())

	if _, err := e.Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestReasonExtract(t *testing.T) {
	llm := &stubLLM{response: `{"rejection_reasons":[{"reason_code":"ALCOHOL_INTOXICATION","confidence":"HIGH"},{"reason_code":"FIR_NOT_SUBMITTED","confidence":"MEDIUM"}]}`}
	e := NewReasonExtractor(llm, "llama3", discardLogger())

	got := e.ExtractRejectionReasons(context.Background(), "driver was drunk and FIR was not submitted")
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].ReasonCode != reason.AlcoholIntoxication || got[1].ReasonCode != reason.FIRNotSubmitted {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(llm.prompt, string(reason.Unknown)) {
		t.Error("prompt missing allowed code list")
	}
}

func TestReasonExtractInvalidCodeFallsBack(t *testing.T) {
	llm := &stubLLM{response: `{"rejection_reasons":[{"reason_code":"MADE_UP_CODE","confidence":"HIGH"}]}`}
	e := NewReasonExtractor(llm, "llama3", discardLogger())

	got := e.ExtractRejectionReasons(context.Background(), "text")
	if len(got) != 1 || got[0].ReasonCode != reason.Unknown || got[0].Confidence != "LOW" {
		t.Fatalf("got %+v", got)
	}
}

func TestReasonExtractEmptyFallsBack(t *testing.T) {
	llm := &stubLLM{response: `{"rejection_reasons":[]}`}
	e := NewReasonExtractor(llm, "llama3", discardLogger())

	got := e.ExtractRejectionReasons(context.Background(), "text")
	if len(got) != 1 || got[0].ReasonCode != reason.Unknown {
		t.Fatalf("got %+v", got)
	}
}

func TestReasonExtractTransportErrorFallsBack(t *testing.T) {
	llm := &stubLLM{err: errors.New("timeout")}
	e := NewReasonExtractor(llm, "llama3", discardLogger())

	got := e.ExtractRejectionReasons(context.Background(), "text")
	if len(got) != 1 || got[0].ReasonCode != reason.Unknown {
		t.Fatalf("got %+v", got)
	}
}
