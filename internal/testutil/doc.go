// Package testutil holds helpers shared by tests and the scenario harness:
// deterministic id generation and small record utilities.
package testutil
