//go:build exttable_debug

package entitytable

// Extra self-checks: freelist state on pop, space membership on mark and a
// full Verify after every sweep.
const debugChecks = true
