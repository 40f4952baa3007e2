package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
)

// CompileViews compiles every view under the top-level "view" field of
// root, in declaration order. Views that fail to compile are reported and
// skipped.
func CompileViews(root cue.Value) ([]*ViewDef, []error) {
	viewsVal := root.LookupPath(cue.ParsePath("view"))
	if !viewsVal.Exists() {
		return nil, nil
	}

	iter, err := viewsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var defs []*ViewDef
	var errs []error
	for iter.Next() {
		def, err := CompileView(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", iter.Label(), err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}

// BuildAll builds each def against reg and indexes the results by view
// name. Views that fail to build are reported and skipped.
func BuildAll(defs []*ViewDef, reg *Registry) (map[string]*View, []error) {
	views := make(map[string]*View, len(defs))
	var errs []error
	for _, def := range defs {
		if _, dup := views[def.Name]; dup {
			errs = append(errs, fmt.Errorf("view %s: defined more than once", def.Name))
			continue
		}
		v, err := Build(def, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", def.Name, err))
			continue
		}
		views[def.Name] = v
	}
	return views, errs
}
