package engine

import (
	"fmt"
	"math/rand"

	"github.com/emrys/duskball/internal/domain"
)

// commentaryTemplate is one narrative line a commentator might use for an
// event. Templates are tagged rather than concatenated ad hoc so selection
// stays an enumerable, seedable weighted draw.
type commentaryTemplate struct {
	text     string // first %s is the actor; second %s (if present) the target
	weight   int
	race     string // non-empty restricts to the actor's race
	lateGame bool   // only once the match is in its final fifth
	twoNames bool
}

var commentaryTemplates = map[string][]commentaryTemplate{
	domain.EventScore: {
		{text: "%s slams it home! The crowd erupts!", weight: 4},
		{text: "%s finds the gap and scores!", weight: 4},
		{text: "A thunderous finish from %s!", weight: 2},
		{text: "%s darts through the line like wind through leaves — score!", weight: 3, race: domain.RaceSylvan},
		{text: "%s bulldozes two defenders and muscles it over!", weight: 3, race: domain.RaceGryll},
		{text: "A flash of light and %s is past everyone. Score!", weight: 3, race: domain.RaceLumina},
		{text: "%s melts out of the shadow of the stands and scores untouched!", weight: 3, race: domain.RaceUmbra},
		{text: "With the clock running down, %s delivers when it matters most!", weight: 5, lateGame: true},
	},
	domain.EventTackle: {
		{text: "%s brings down %s with a crunching tackle", weight: 4, twoNames: true},
		{text: "Huge stop by %s!", weight: 3},
		{text: "%s flattens %s — the dome shakes", weight: 3, race: domain.RaceGryll, twoNames: true},
		{text: "Bone-rattling hit from %s this late in the match", weight: 4, lateGame: true},
	},
	domain.EventPass: {
		{text: "%s threads a pass to %s", weight: 5, twoNames: true},
		{text: "Crisp ball movement from %s", weight: 3},
		{text: "%s arcs a gleaming spiral to %s", weight: 2, race: domain.RaceLumina, twoNames: true},
	},
	domain.EventInterception: {
		{text: "Intercepted! %s reads it all the way", weight: 4},
		{text: "%s picks off the pass!", weight: 4},
		{text: "%s appears from nowhere to steal it", weight: 3, race: domain.RaceUmbra},
		{text: "A late-match turnover — %s may have just swung this one", weight: 5, lateGame: true},
	},
	domain.EventInjury: {
		{text: "%s is down and limping to the sideline", weight: 4},
		{text: "The trainers are out for %s", weight: 3},
	},
}

// lateGameFraction is how far through the clock "late game" begins.
const lateGameFraction = 0.8

// commentaryFor picks a weighted-random line for an event. Templates gated
// on race or match phase only enter the draw when applicable; a neutral
// fallback always exists.
func commentaryFor(rng *rand.Rand, eventType string, actor domain.Player, target *domain.Player, clockFrac float64) string {
	pool := commentaryTemplates[eventType]
	if len(pool) == 0 {
		return fmt.Sprintf("%s makes a play", actor.Name)
	}

	total := 0
	applicable := make([]commentaryTemplate, 0, len(pool))
	for _, tpl := range pool {
		if tpl.race != "" && tpl.race != actor.Race {
			continue
		}
		if tpl.lateGame && clockFrac < lateGameFraction {
			continue
		}
		if tpl.twoNames && target == nil {
			continue
		}
		applicable = append(applicable, tpl)
		total += tpl.weight
	}
	if len(applicable) == 0 || total == 0 {
		return fmt.Sprintf("%s makes a play", actor.Name)
	}

	roll := rng.Intn(total)
	for _, tpl := range applicable {
		roll -= tpl.weight
		if roll < 0 {
			if tpl.twoNames {
				return fmt.Sprintf(tpl.text, actor.Name, target.Name)
			}
			return fmt.Sprintf(tpl.text, actor.Name)
		}
	}
	last := applicable[len(applicable)-1]
	if last.twoNames {
		return fmt.Sprintf(last.text, actor.Name, target.Name)
	}
	return fmt.Sprintf(last.text, actor.Name)
}
