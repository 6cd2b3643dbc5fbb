package config

// Default returns the production tables.
func Default() Analysis {
	return Analysis{
		Scoring: Scoring{
			Keywords: []string{
				"killed", "dead", "murdered", "shot", "executed",
				"children killed", "civilians killed", "family killed",
				"bombing", "airstrike", "shelling", "artillery", "sniper",
				"bulldozer", "tank", "F-16", "drone strike", "missile",
				"war crime", "genocide", "ethnic cleansing", "apartheid",
				"illegal settlement", "home demolition", "forced displacement",
				"collective punishment", "siege", "blockade",
				"IDF", "Israeli army", "Israeli forces", "occupation forces",
				"border police", "settlers attack", "military court",
				"hospital bombed", "school destroyed", "mosque damaged",
				"power plant", "water system", "medical facility",
				"humanitarian crisis", "medical supplies", "food shortage",
				"clean water", "electricity cut", "fuel shortage",
			},
			MaxKeywords:     3,
			Base:            30,
			PerKeyword:      10,
			Regions:         []string{"gaza", "west bank", "jerusalem", "palestine"},
			RegionBonus:     5,
			CasualtyPattern: `\d+.*(?:killed|dead|wounded|injured)`,
			CasualtyBonus:   15,
			Orgs:            []string{"human rights", "amnesty", "btselem", "ocha"},
			OrgBonus:        10,
		},
		Bots: Bots{
			PrefixLength:          50,
			HighVolumePosts:       30,
			RepeatedMinPosts:      5,
			UniquenessThreshold:   0.7,
			SpamMinPosts:          10,
			SpamMaxAvgEngagement:  1,
			HighVolumeRatio:       0.10,
			HighVolumeWeight:      30,
			RepeatedRatio:         0.05,
			RepeatedWeight:        25,
			AvgPostsPerAuthor:     25,
			AvgPostsWeight:        20,
			SpamRatio:             0.08,
			SpamWeight:            15,
			MaxProbability:        95,
			SimilaritySampleLimit: 5,
		},
		Keywords: Keywords{
			Top: 15,
			Categories: []Category{
				{Name: "violence", Keywords: []string{"killed", "dead", "murdered", "shot", "bombing", "airstrike", "shelling"}},
				{Name: "victims", Keywords: []string{"children killed", "civilians killed", "family killed", "women", "elderly"}},
				{Name: "infrastructure", Keywords: []string{"hospital bombed", "school destroyed", "mosque damaged", "home demolition"}},
				{Name: "military", Keywords: []string{"IDF", "Israeli forces", "Israeli army", "tank", "drone strike", "F-16"}},
				{Name: "legal", Keywords: []string{"war crime", "genocide", "ethnic cleansing", "apartheid", "illegal settlement"}},
				{Name: "humanitarian", Keywords: []string{"siege", "blockade", "collective punishment", "humanitarian crisis"}},
			},
		},
		Temporal: Temporal{TopHours: 3, TopDays: 3},
		Geography: Geography{
			TopLocations: 10,
			Excluded:     []string{"Unknown"},
			Regions: []RegionRule{
				{Name: "Gaza", Patterns: []string{"gaza"}},
				{Name: "West Bank", Patterns: []string{"west bank", "ramallah", "jenin", "nablus", "hebron"}},
				{Name: "East Jerusalem", Patterns: []string{"jerusalem"}},
			},
			Fallback: "Other",
		},
		Violations: []Indicator{
			{Name: "civilian_casualties", Keywords: []string{"civilians killed", "children killed", "family killed", "killed", "dead"}},
			{Name: "infrastructure_attacks", Keywords: []string{"hospital bombed", "school destroyed", "mosque damaged", "bombing", "airstrike"}},
			{Name: "settlement_activities", Keywords: []string{"illegal settlement", "home demolition", "settlers attack"}},
			{Name: "humanitarian_violations", Keywords: []string{"siege", "blockade", "collective punishment", "humanitarian crisis"}},
			{Name: "children_casualties", Subjects: []string{"children"}, Harms: []string{"killed", "dead", "wounded"}},
			{Name: "medical_attacks", Subjects: []string{"hospital"}, Harms: []string{"bombed", "attacked", "destroyed"}},
			{Name: "education_attacks", Subjects: []string{"school"}, Harms: []string{"bombed", "destroyed", "damaged"}},
			{Name: "religious_site_attacks", Subjects: []string{"mosque", "church", "religious"}, Harms: []string{"bombed", "attacked", "destroyed"}},
		},
		CollectionIndicators: CollectionIndicators{
			CivilianCasualties:     []string{"killed", "dead", "children killed"},
			InfrastructureAttacks:  []string{"hospital bombed", "school destroyed", "mosque damaged"},
			SettlementActivities:   []string{"illegal settlement", "home demolition"},
			HumanitarianViolations: []string{"siege", "blockade", "collective punishment"},
		},
		Examples: Examples{
			CriticalMinRelevance: 85,
			CriticalLimit:        5,
			Subsets: []Subset{
				{Name: "civilian_casualties", Keywords: []string{"civilians killed", "children killed", "family killed"}, Limit: 3},
				{Name: "infrastructure_attacks", Keywords: []string{"hospital bombed", "school destroyed", "bombing"}, Limit: 3},
				{Name: "war_crimes", Keywords: []string{"war crime", "genocide", "ethnic cleansing"}, Limit: 3},
			},
			HighEngagementLimit: 3,
			TextLimit:           200,
		},
		Sampling: Quotas{Critical: 80, HighRelevance: 15, Regular: 5, HighRelevanceMin: 80},
		Queries: []string{
			"Gaza", "Gaza Strip", "#Gaza", "#GazaUnderAttack", "#SaveGaza",
			"West Bank", "Cisjordania", "#WestBank", "Jenin", "Nablus", "Ramallah",
			"East Jerusalem", "Al Aqsa", "Sheikh Jarrah", "#SaveSheikhJarrah",
			"Gaza bombing", "Gaza airstrike", "Palestinian killed", "Israeli forces",
			"IDF operation", "settlement expansion", "home demolition", "checkpoint violence",
			"B'Tselem", "Human Rights Watch Palestine", "Amnesty Palestine", "OCHA Palestine",
			"#PalestineUnderAttack", "#FreePalestine", "#GazaGenocide", "#WarCrimes",
			"#Palestine", "#EndTheOccupation", "#ApartheidIsrael", "#GazaBlockade",
			"Khan Younis", "Rafah Gaza", "Bethlehem Palestine", "Hebron Palestine",
		},
	}
}
