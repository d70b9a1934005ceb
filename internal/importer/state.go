package importer

// State 是单次导入的阶段。状态只前进，失败后不可恢复。
type State int

const (
	StateIdle State = iota
	StateGathering
	StateGroupsApplied
	StateTemplatesApplied
	StateHostsApplied
	StateMissingDeleted
	StateChildrenApplied
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateGathering:        "gathering",
	StateGroupsApplied:    "groups_applied",
	StateTemplatesApplied: "templates_applied",
	StateHostsApplied:     "hosts_applied",
	StateMissingDeleted:   "missing_deleted",
	StateChildrenApplied:  "children_applied",
	StateDone:             "done",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
