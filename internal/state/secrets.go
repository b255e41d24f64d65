package state

import (
	"fmt"

	"github.com/infrasonar/rapp/internal/manifest"
)

// secretKey reports whether k is one of the recognized secret field names.
func secretKey(k string) bool {
	return k == "password" || k == "secret"
}

// replaceSecrets walks v in place, replacing any value at a key named
// "password" or "secret" with a boolean indicating whether a value is
// present, at any depth including inside sequences of mappings. Grounded
// in original_source/lib/state.py::_replace_secrets.
func replaceSecrets(v *manifest.Value) {
	m, ok := v.AsMap()
	if !ok {
		return
	}
	for _, k := range m.Keys() {
		child, _ := m.Get(k)
		if secretKey(k) {
			present := !child.IsNull()
			if s, ok := child.AsString(); ok {
				present = s != ""
			}
			m.Set(k, manifest.NewBool(present))
			continue
		}
		switch child.Kind {
		case manifest.KindMap:
			replaceSecrets(child)
		case manifest.KindSeq:
			for _, e := range child.Seq {
				if e.Kind == manifest.KindMap {
					replaceSecrets(e)
				}
			}
		}
	}
}

// revertSecrets walks incoming in place against the matching positions of
// orig, restoring any boolean-true secret value from the corresponding
// string value in orig. A string secret value in incoming is accepted as a
// fresh value and left untouched. Returns an error if a boolean-true secret
// has no corresponding value in orig. Grounded in original_source/lib/state.py::_revert_secrets.
func revertSecrets(incoming, orig *manifest.Value) error {
	m, ok := incoming.AsMap()
	if !ok {
		return nil
	}
	om, _ := orig.AsMap() // nil is fine; Get on nil returns not-found

	for _, k := range m.Keys() {
		child, _ := m.Get(k)
		if secretKey(k) {
			if b, ok := child.AsBool(); ok {
				if !b {
					return fmt.Errorf("secret %q must be true or a string, got false", k)
				}
				var origStr string
				var origOk bool
				if om != nil {
					if ov, ok := om.Get(k); ok {
						origStr, origOk = ov.AsString()
					}
				}
				if !origOk || origStr == "" {
					return fmt.Errorf("got a boolean %q but no current value is stored", k)
				}
				m.Set(k, manifest.NewString(origStr))
				continue
			}
			if _, ok := child.AsString(); !ok {
				return fmt.Errorf("%q must be a boolean or a string", k)
			}
			continue
		}

		switch child.Kind {
		case manifest.KindMap:
			var origChild *manifest.Value
			if om != nil {
				origChild, _ = om.Get(k)
			}
			if origChild == nil {
				origChild = manifest.NewMap()
			}
			if err := revertSecrets(child, origChild); err != nil {
				return err
			}
		case manifest.KindSeq:
			var origSeq []*manifest.Value
			if om != nil {
				if ov, ok := om.Get(k); ok {
					origSeq, _ = ov.AsSeq()
				}
			}
			for i, e := range child.Seq {
				if e.Kind != manifest.KindMap {
					continue
				}
				var origElem *manifest.Value
				if i < len(origSeq) && origSeq[i].Kind == manifest.KindMap {
					origElem = origSeq[i]
				} else {
					origElem = manifest.NewMap()
				}
				if err := revertSecrets(e, origElem); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
