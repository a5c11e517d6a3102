// Package testutil holds helpers shared by tests across packages: a
// deterministic trace token generator and a throwaway SQLite journal.
package testutil
