package enums

type ReconcileOutcome string

const (
	ReconcileOutcomeRepaired    ReconcileOutcome = "repaired"
	ReconcileOutcomeDeactivated ReconcileOutcome = "deactivated"
	ReconcileOutcomeUnfixed     ReconcileOutcome = "unfixed"
	ReconcileOutcomeFailed      ReconcileOutcome = "failed"
)
