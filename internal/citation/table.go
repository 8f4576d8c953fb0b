package citation

import "github.com/fernworks/docket/internal/todo"

// citability maps every change type to whether it produces a citation and,
// if so, with what type and base priority. The table is exhaustive over
// todo.ValidChangeTypes; a change type absent here is a programming error
// caught by tests, not a silent skip.
type citabilityRule struct {
	Citable  bool
	Type     todo.CitationType
	Priority todo.Priority
}

var citability = map[todo.ChangeType]citabilityRule{
	todo.ChangeCreated:            {Citable: true, Type: todo.CitationStructureChange, Priority: todo.PriorityMedium},
	todo.ChangeUpdated:            {Citable: true, Type: todo.CitationContentChange, Priority: todo.PriorityLow},
	todo.ChangeDeleted:            {Citable: true, Type: todo.CitationStructureChange, Priority: todo.PriorityCritical},
	todo.ChangeMoved:              {Citable: true, Type: todo.CitationStructureChange, Priority: todo.PriorityHigh},
	todo.ChangeStatusChanged:      {Citable: true, Type: todo.CitationStatusChange, Priority: todo.PriorityHigh},
	todo.ChangePropagationUpdate:  {Citable: true, Type: todo.CitationPropagation, Priority: todo.PriorityMedium},
	todo.ChangePropagationBlocked: {Citable: true, Type: todo.CitationPropagation, Priority: todo.PriorityHigh},
	todo.ChangeRollbackApplied:    {Citable: true, Type: todo.CitationRollback, Priority: todo.PriorityHigh},

	// Bookkeeping entries carry no information a dependent todo acts on.
	todo.ChangeSnapshotTaken: {Citable: false},
}

// bumpPriority raises a priority one step, capped at critical. Entries
// that triggered propagation escalate their citations.
func bumpPriority(p todo.Priority) todo.Priority {
	switch p {
	case todo.PriorityLow:
		return todo.PriorityMedium
	case todo.PriorityMedium:
		return todo.PriorityHigh
	default:
		return todo.PriorityCritical
	}
}
