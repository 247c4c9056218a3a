package doctor

// GroupDefinition describes a check group and the checks it runs.
type GroupDefinition struct {
	ID          string
	Name        string
	Description string
	CheckIDs    []string
}

// groupDefinitions lists the check groups in display order.
var groupDefinitions = []GroupDefinition{
	{
		ID:          GroupPackages,
		Name:        "Package manager",
		Description: "Required to install OS packages and the prebuilt artifact packages",
		CheckIDs:    []string{IDAptGet, IDDpkg, IDDpkgQuery},
	},
	{
		ID:          GroupBuild,
		Name:        "Build tools",
		Description: "Required to build artifacts from source (installed by the package list)",
		CheckIDs:    []string{IDMake, IDGCC},
	},
	{
		ID:          GroupServices,
		Name:        "Services",
		Description: "Required to restart services after their configuration changes",
		CheckIDs:    []string{IDInitSystem},
	},
	{
		ID:          GroupPython,
		Name:        "Python",
		Description: "Required to install the pinned Python requirements",
		CheckIDs:    []string{IDPip},
	},
	{
		ID:          GroupState,
		Name:        "State",
		Description: "Where installed artifact versions are recorded",
		CheckIDs:    []string{IDStateDir},
	},
}

// GetGroups returns all check groups, without results.
func GetGroups() []CheckGroup {
	groups := make([]CheckGroup, 0, len(groupDefinitions))
	for _, def := range groupDefinitions {
		groups = append(groups, CheckGroup{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
		})
	}
	return groups
}

// GetGroupDefinition returns the definition for a specific group.
func GetGroupDefinition(groupID string) (GroupDefinition, bool) {
	for _, def := range groupDefinitions {
		if def.ID == groupID {
			return def, true
		}
	}
	return GroupDefinition{}, false
}

// GetAllGroupIDs returns all group IDs in display order.
func GetAllGroupIDs() []string {
	ids := make([]string, len(groupDefinitions))
	for i, def := range groupDefinitions {
		ids[i] = def.ID
	}
	return ids
}
