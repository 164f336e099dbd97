// Package strike defines the vocabulary shared by the classifier, ledger, and
// remediator: failure categories, ledger keys, persisted strike records,
// remediation actions, and the threshold decision table.
package strike
