package api

import (
	"fmt"
	"strings"

	"github.com/emrys/duskball/internal/domain"
)

const (
	minAttribute = 1
	maxAttribute = 40
)

var validRaces = map[string]bool{
	domain.RaceHuman:  true,
	domain.RaceSylvan: true,
	domain.RaceGryll:  true,
	domain.RaceLumina: true,
	domain.RaceUmbra:  true,
}

// validateSubdivision checks a division tier and greek subdivision name.
func validateSubdivision(division int, subdivision string) error {
	if division < domain.MinDivision || division > domain.MaxDivision {
		return fmt.Errorf("division must be between %d and %d", domain.MinDivision, domain.MaxDivision)
	}
	for _, name := range domain.SubdivisionNames {
		if name == subdivision {
			return nil
		}
	}
	return fmt.Errorf("unknown subdivision %q", subdivision)
}

// validateTeam checks a team registration payload.
func validateTeam(team *domain.Team) error {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return fmt.Errorf("team name is required")
	}
	if len(team.Name) > 64 {
		return fmt.Errorf("team name must be 64 characters or fewer")
	}
	if err := validateSubdivision(team.Division, team.Subdivision); err != nil {
		return err
	}
	if team.Camaraderie < 0 || team.Camaraderie > 100 {
		return fmt.Errorf("camaraderie must be between 0 and 100")
	}
	if team.Atmosphere < 0 || team.Atmosphere > 100 {
		return fmt.Errorf("atmosphere must be between 0 and 100")
	}
	return nil
}

var validModifierKinds = map[string]bool{
	domain.ModifierEquipment:  true,
	domain.ModifierConsumable: true,
	domain.ModifierStaff:      true,
}

// validateModifier checks a team modifier payload. Values are bounded so a
// single item cannot swamp the camaraderie and atmosphere terms.
func validateModifier(m *domain.TeamModifier) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("modifier name is required")
	}
	if !validModifierKinds[m.Kind] {
		return fmt.Errorf("unknown modifier kind %q", m.Kind)
	}
	if m.Value < -0.25 || m.Value > 0.25 {
		return fmt.Errorf("modifier value must be between -0.25 and 0.25")
	}
	return nil
}

// validatePlayer checks a roster addition payload.
func validatePlayer(p *domain.Player) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if !validRaces[p.Race] {
		return fmt.Errorf("unknown race %q", p.Race)
	}
	if _, ok := domain.RoleSquadCounts[p.Role]; !ok {
		return fmt.Errorf("unknown role %q", p.Role)
	}
	for _, attr := range []struct {
		name  string
		value int
	}{
		{"power", p.Power},
		{"speed", p.Speed},
		{"agility", p.Agility},
		{"throwing", p.Throwing},
		{"catching", p.Catching},
		{"stamina", p.Stamina},
		{"leadership", p.Leadership},
	} {
		if attr.value < minAttribute || attr.value > maxAttribute {
			return fmt.Errorf("%s must be between %d and %d", attr.name, minAttribute, maxAttribute)
		}
	}
	return nil
}
