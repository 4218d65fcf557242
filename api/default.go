package api

// Default returns the built-in tenant schema: the entity types a directory
// collection run produces, the relationship set between them, and the
// composite profiles served to the reporting layer.
//
// Collection jobs emit one dataset per entity type; dataset names here match
// the job output names.
func Default() *Schema {
	return &Schema{
		Version: "v1",
		Entities: []Entity{
			{
				Type:    "account",
				Dataset: "accounts",
				Key:     "$.id",
				AltKeys: []string{"$.userPrincipalName", "$.displayName"},
			},
			{
				Type:    "endpoint",
				Dataset: "endpoints",
				Key:     "$.id",
				AltKeys: []string{"$.serialNumber", "$.deviceName"},
			},
			{
				Type:    "group",
				Dataset: "groups",
				Key:     "$.id",
				AltKeys: []string{"$.displayName"},
			},
			{
				Type:    "collabspace",
				Dataset: "collabspaces",
				Key:     "$.id",
				AltKeys: []string{"$.displayName"},
			},
			{
				Type:    "site",
				Dataset: "sites",
				Key:     "$.id",
				AltKeys: []string{"$.url", "$.displayName"},
			},
			{
				Type:    "securityalert",
				Dataset: "securityalerts",
				Key:     "$.id",
			},
			{
				Type:    "risksignal",
				Dataset: "risksignals",
				Key:     "$.id",
			},
			{
				Type:    "roleassignment",
				Dataset: "roleassignments",
				Key:     "$.id",
			},
		},
		Relationships: []Relationship{
			// Endpoint records carry the owning account's id.
			{Name: "devices", Source: "account", Target: "endpoint", Origin: OriginTarget, Selector: "$.ownerId", Inverse: "owner"},
			// Group records embed their member and owner references.
			{Name: "members", Source: "group", Target: "account", Origin: OriginSource, Selector: "$.members[*]", Inverse: "memberOf"},
			{Name: "owners", Source: "group", Target: "account", Origin: OriginSource, Selector: "$.owners[*]", Inverse: "ownsGroups"},
			// Sites and collaboration spaces link back to their group.
			{Name: "groupSites", Source: "group", Target: "site", Origin: OriginTarget, Selector: "$.groupId", Inverse: "siteGroup"},
			{Name: "groupSpaces", Source: "group", Target: "collabspace", Origin: OriginTarget, Selector: "$.groupId", Inverse: "spaceGroup"},
			// Security signals carry foreign keys to the affected entity.
			{Name: "deviceAlerts", Source: "endpoint", Target: "securityalert", Origin: OriginTarget, Selector: "$.deviceId"},
			{Name: "accountAlerts", Source: "account", Target: "securityalert", Origin: OriginTarget, Selector: "$.userId"},
			{Name: "riskSignals", Source: "account", Target: "risksignal", Origin: OriginTarget, Selector: "$.userId"},
			{Name: "roleAssignments", Source: "account", Target: "roleassignment", Origin: OriginTarget, Selector: "$.principalId"},
		},
		Profiles: []Profile{
			{
				Name: "account-overview",
				Root: "account",
				Sections: []ProfileSection{
					{Relationship: "devices"},
					{Relationship: "memberOf"},
					{Relationship: "roleAssignments"},
					{Relationship: "riskSignals"},
					{Relationship: "accountAlerts"},
					// Sites reachable through the groups this account owns.
					{Relationship: "ownsGroups", Then: "groupSites", As: "groupSites"},
				},
			},
			{
				Name: "endpoint-overview",
				Root: "endpoint",
				Sections: []ProfileSection{
					{Relationship: "owner"},
					{Relationship: "deviceAlerts"},
				},
			},
			{
				Name: "group-overview",
				Root: "group",
				Sections: []ProfileSection{
					{Relationship: "members"},
					{Relationship: "owners"},
					{Relationship: "groupSites"},
					{Relationship: "groupSpaces"},
				},
			},
		},
	}
}
