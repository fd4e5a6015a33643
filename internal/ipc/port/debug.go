package port

import (
	"strconv"

	"github.com/davecgh/go-spew/spew"
)

// DebugDump is the successor to the original's dump_port_list debugger
// command: a snapshot of every live port's metadata.
func (t *Table) DebugDump() []Info {
	return t.all()
}

// DebugDumpOne is the successor to dump_port_info, looked up by id or
// name exactly as the original's debugger command did — minus the raw
// kernel-pointer branch, which has no meaning here (see SPEC_FULL.md §4).
func (t *Table) DebugDumpOne(idOrName string) (Info, bool) {
	if id, err := parsePortID(idOrName); err == nil {
		if info, err := t.GetInfo(id); err == nil {
			return info, true
		}
		return Info{}, false
	}
	if id, err := t.Find(idOrName); err == nil {
		info, err := t.GetInfo(id)
		return info, err == nil
	}
	return Info{}, false
}

// DebugString renders an Info the way the original's _dump_port_info did,
// using go-spew for field-by-field introspection (grounded on
// pkg/fmtt.PrintErrChainDebug's use of the same library for diagnostics).
func DebugString(info Info) string {
	return spew.Sdump(info)
}

func parsePortID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return Invalid, err
	}
	return ID(n), nil
}
