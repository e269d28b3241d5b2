package world

const (
	// EnemyThreshold and AllyThreshold split the relationship score into factions
	EnemyThreshold = -75
	AllyThreshold  = 75
)

// ScoreFactionResolver derives the faction from the relationship score.
// Claims of the local player are not foreign and are never resolved.
type ScoreFactionResolver struct {
	Self string
}

// ResolveFaction implements IFactionResolver
func (r ScoreFactionResolver) ResolveFaction(owner string, score int) (Faction, bool) {
	if owner == "" || owner == r.Self {
		return FactionNeutral, false
	}
	switch {
	case score <= EnemyThreshold:
		return FactionEnemy, true
	case score >= AllyThreshold:
		return FactionAlly, true
	default:
		return FactionNeutral, true
	}
}
