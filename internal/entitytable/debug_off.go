//go:build !exttable_debug

package entitytable

const debugChecks = false
