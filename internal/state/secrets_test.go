package state

import (
	"testing"

	"github.com/infrasonar/rapp/internal/manifest"
)

func TestReplaceSecretsMasksTopLevel(t *testing.T) {
	v := manifest.NewMap()
	v.Map.Set("password", manifest.NewString("hunter2"))
	v.Map.Set("host", manifest.NewString("example.com"))

	replaceSecrets(v)

	pw, _ := v.Map.Get("password")
	if b, ok := pw.AsBool(); !ok || !b {
		t.Errorf("password = %v, want boolean true", pw)
	}
	host, _ := v.Map.Get("host")
	if s, ok := host.AsString(); !ok || s != "example.com" {
		t.Errorf("host = %v, want unchanged string", host)
	}
}

func TestReplaceSecretsMasksEmptyAsFalse(t *testing.T) {
	v := manifest.NewMap()
	v.Map.Set("secret", manifest.NewString(""))

	replaceSecrets(v)

	s, _ := v.Map.Get("secret")
	if b, ok := s.AsBool(); !ok || b {
		t.Errorf("secret = %v, want boolean false for empty string", s)
	}
}

func TestReplaceSecretsRecursesIntoNestedMapsAndSequences(t *testing.T) {
	inner := manifest.NewMap()
	inner.Map.Set("password", manifest.NewString("x"))

	seqElem := manifest.NewMap()
	seqElem.Map.Set("secret", manifest.NewString("y"))
	seq := manifest.NewSeq()
	seq.Seq = append(seq.Seq, seqElem)

	v := manifest.NewMap()
	v.Map.Set("nested", inner)
	v.Map.Set("items", seq)

	replaceSecrets(v)

	nestedVal, _ := v.Map.Get("nested")
	nested, _ := nestedVal.AsMap()
	pw, _ := nested.Get("password")
	if b, ok := pw.AsBool(); !ok || !b {
		t.Errorf("nested password = %v, want boolean true", pw)
	}

	itemsVal, _ := v.Map.Get("items")
	items, _ := itemsVal.AsSeq()
	elemMap, _ := items[0].AsMap()
	sec, _ := elemMap.Get("secret")
	if b, ok := sec.AsBool(); !ok || !b {
		t.Errorf("seq element secret = %v, want boolean true", sec)
	}
}

func TestRevertSecretsRestoresFromOrig(t *testing.T) {
	orig := manifest.NewMap()
	orig.Map.Set("password", manifest.NewString("hunter2"))

	incoming := manifest.NewMap()
	incoming.Map.Set("password", manifest.NewBool(true))

	if err := revertSecrets(incoming, orig); err != nil {
		t.Fatalf("revertSecrets() error = %v", err)
	}
	pw, _ := incoming.Map.Get("password")
	if s, ok := pw.AsString(); !ok || s != "hunter2" {
		t.Errorf("password = %v, want restored string", pw)
	}
}

func TestRevertSecretsAcceptsFreshStringValue(t *testing.T) {
	orig := manifest.NewMap()
	incoming := manifest.NewMap()
	incoming.Map.Set("password", manifest.NewString("newvalue"))

	if err := revertSecrets(incoming, orig); err != nil {
		t.Fatalf("revertSecrets() error = %v", err)
	}
	pw, _ := incoming.Map.Get("password")
	if s, ok := pw.AsString(); !ok || s != "newvalue" {
		t.Errorf("password = %v, want newvalue unchanged", pw)
	}
}

func TestRevertSecretsErrorsWhenTrueButNothingStored(t *testing.T) {
	orig := manifest.NewMap()
	incoming := manifest.NewMap()
	incoming.Map.Set("password", manifest.NewBool(true))

	if err := revertSecrets(incoming, orig); err == nil {
		t.Fatal("revertSecrets() error = nil, want an error when nothing is stored")
	}
}

func TestRevertSecretsErrorsOnFalseBoolean(t *testing.T) {
	orig := manifest.NewMap()
	incoming := manifest.NewMap()
	incoming.Map.Set("password", manifest.NewBool(false))

	if err := revertSecrets(incoming, orig); err == nil {
		t.Fatal("revertSecrets() error = nil, want an error for a false secret")
	}
}

func TestRevertSecretsPositionalSequenceMatching(t *testing.T) {
	origElem0 := manifest.NewMap()
	origElem0.Map.Set("secret", manifest.NewString("first"))
	origElem1 := manifest.NewMap()
	origElem1.Map.Set("secret", manifest.NewString("second"))
	origSeq := manifest.NewSeq()
	origSeq.Seq = append(origSeq.Seq, origElem0, origElem1)
	orig := manifest.NewMap()
	orig.Map.Set("items", origSeq)

	inElem0 := manifest.NewMap()
	inElem0.Map.Set("secret", manifest.NewBool(true))
	inElem1 := manifest.NewMap()
	inElem1.Map.Set("secret", manifest.NewBool(true))
	inSeq := manifest.NewSeq()
	inSeq.Seq = append(inSeq.Seq, inElem0, inElem1)
	incoming := manifest.NewMap()
	incoming.Map.Set("items", inSeq)

	if err := revertSecrets(incoming, orig); err != nil {
		t.Fatalf("revertSecrets() error = %v", err)
	}
	items, _ := incoming.Map.Get("items")
	seq, _ := items.AsSeq()
	e0, _ := seq[0].AsMap()
	s0, _ := e0.Get("secret")
	if v, _ := s0.AsString(); v != "first" {
		t.Errorf("items[0].secret = %q, want first", v)
	}
	e1, _ := seq[1].AsMap()
	s1, _ := e1.Get("secret")
	if v, _ := s1.AsString(); v != "second" {
		t.Errorf("items[1].secret = %q, want second", v)
	}
}
