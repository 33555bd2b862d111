package models

// Module identifies one screen group of the case-management product. The set
// is closed: override writes reject anything else.
type Module string

const (
	ModuleClients   Module = "clients"
	ModuleCases     Module = "cases"
	ModuleTasks     Module = "tasks"
	ModuleCalendar  Module = "calendar"
	ModuleBilling   Module = "billing"
	ModuleDocuments Module = "documents"
	ModuleSettings  Module = "settings"
)

// Action identifies one gated operation within a module.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
	ActionAssign  Action = "assign"
	ActionApprove Action = "approve"
)

// Modules lists the closed module set in display order.
var Modules = []Module{
	ModuleClients,
	ModuleCases,
	ModuleTasks,
	ModuleCalendar,
	ModuleBilling,
	ModuleDocuments,
	ModuleSettings,
}

// Actions lists the closed action set.
var Actions = []Action{
	ActionCreate,
	ActionUpdate,
	ActionDelete,
	ActionExport,
	ActionAssign,
	ActionApprove,
}

// KnownModule reports membership in the closed module set.
func KnownModule(m Module) bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}

// KnownAction reports membership in the closed action set.
func KnownAction(a Action) bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// ModulePermission holds the visibility flag and per-action flags for one
// module. A hidden module implies every action is denied, whatever the stored
// flags say.
type ModulePermission struct {
	Visible bool            `json:"visible"`
	Actions map[Action]bool `json:"actions"`
}

// PermissionRecord maps each module to its resolved permission.
type PermissionRecord map[Module]ModulePermission

// Allows reports whether the record grants the module (and, when action is
// non-empty, the action). Hidden or absent modules deny everything.
func (r PermissionRecord) Allows(module Module, action Action) bool {
	mp, ok := r[module]
	if !ok || !mp.Visible {
		return false
	}
	if action == "" {
		return true
	}
	return mp.Actions[action]
}

// Normalize cascade-clears action flags on hidden modules and drops unknown
// keys, returning the cleaned copy.
func (r PermissionRecord) Normalize() PermissionRecord {
	out := make(PermissionRecord, len(r))
	for module, mp := range r {
		if !KnownModule(module) {
			continue
		}
		cleaned := ModulePermission{Visible: mp.Visible, Actions: make(map[Action]bool, len(Actions))}
		for _, action := range Actions {
			cleaned.Actions[action] = mp.Visible && mp.Actions[action]
		}
		out[module] = cleaned
	}
	return out
}

// Validate rejects unknown module or action keys. Hidden modules carrying
// stale action flags are not an error here; Normalize clears them.
func (r PermissionRecord) Validate() []string {
	var unknown []string
	for module, mp := range r {
		if !KnownModule(module) {
			unknown = append(unknown, string(module))
			continue
		}
		for action := range mp.Actions {
			if !KnownAction(action) {
				unknown = append(unknown, string(module)+"."+string(action))
			}
		}
	}
	return unknown
}

// FullAccessRecord grants every module and every action.
func FullAccessRecord() PermissionRecord {
	record := make(PermissionRecord, len(Modules))
	for _, module := range Modules {
		actions := make(map[Action]bool, len(Actions))
		for _, action := range Actions {
			actions[action] = true
		}
		record[module] = ModulePermission{Visible: true, Actions: actions}
	}
	return record
}

// DefaultRecordForRole returns the static default permission table entry for
// a role. Unrecognised roles fall back to the generic-user default, the most
// restrictive entry.
func DefaultRecordForRole(role Role) PermissionRecord {
	switch role {
	case RoleAdmin:
		return FullAccessRecord()
	case RoleManager:
		return buildRecord(map[Module][]Action{
			ModuleClients:   {ActionCreate, ActionUpdate, ActionDelete, ActionExport},
			ModuleCases:     {ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionAssign, ActionApprove},
			ModuleTasks:     {ActionCreate, ActionUpdate, ActionDelete, ActionAssign, ActionApprove},
			ModuleCalendar:  {ActionCreate, ActionUpdate, ActionDelete},
			ModuleBilling:   {ActionCreate, ActionUpdate, ActionExport, ActionApprove},
			ModuleDocuments: {ActionCreate, ActionUpdate, ActionDelete, ActionExport},
			ModuleSettings:  {ActionApprove},
		})
	case RolePractitioner:
		return buildRecord(map[Module][]Action{
			ModuleClients:   {ActionCreate, ActionUpdate},
			ModuleCases:     {ActionCreate, ActionUpdate, ActionAssign},
			ModuleTasks:     {ActionCreate, ActionUpdate, ActionAssign},
			ModuleCalendar:  {ActionCreate, ActionUpdate},
			ModuleDocuments: {ActionCreate, ActionUpdate, ActionExport},
		})
	case RoleAssistant:
		return buildRecord(map[Module][]Action{
			ModuleClients:   {ActionUpdate},
			ModuleCases:     {},
			ModuleTasks:     {ActionCreate, ActionUpdate},
			ModuleCalendar:  {ActionCreate, ActionUpdate},
			ModuleDocuments: {ActionCreate},
		})
	default:
		return buildRecord(map[Module][]Action{
			ModuleCases: {},
			ModuleTasks: {},
		})
	}
}

func buildRecord(visible map[Module][]Action) PermissionRecord {
	record := make(PermissionRecord, len(Modules))
	for _, module := range Modules {
		granted, ok := visible[module]
		actions := make(map[Action]bool, len(Actions))
		for _, action := range Actions {
			actions[action] = false
		}
		if !ok {
			record[module] = ModulePermission{Visible: false, Actions: actions}
			continue
		}
		for _, action := range granted {
			actions[action] = true
		}
		record[module] = ModulePermission{Visible: true, Actions: actions}
	}
	return record
}
