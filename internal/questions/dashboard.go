package questions

import (
	"sort"

	"github.com/sat-prep/backend/internal/models"
)

const recentActivityLimit = 10

type skillKey struct {
	domain string
	skill  string
}

// AggregateProgress folds completed-question rows into overall, per-domain
// and per-(domain, skill) accuracy. Domains and skills come back in
// alphabetical order.
func AggregateProgress(rows []models.ProgressRow) models.ProgressBreakdown {
	var overall models.AccuracyStat
	domains := make(map[string]*models.AccuracyStat)
	skills := make(map[skillKey]*models.AccuracyStat)

	for _, r := range rows {
		correct := r.LastIsCorrect != nil && *r.LastIsCorrect

		d, ok := domains[r.DomainName]
		if !ok {
			d = &models.AccuracyStat{}
			domains[r.DomainName] = d
		}
		k := skillKey{domain: r.DomainName, skill: r.SkillName}
		sk, ok := skills[k]
		if !ok {
			sk = &models.AccuracyStat{}
			skills[k] = sk
		}

		for _, st := range []*models.AccuracyStat{&overall, d, sk} {
			st.Attempted++
			if correct {
				st.Correct++
			}
		}
	}

	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	skillsByDomain := make(map[string][]string)
	for k := range skills {
		skillsByDomain[k.domain] = append(skillsByDomain[k.domain], k.skill)
	}

	out := models.ProgressBreakdown{
		Overall: withAccuracy(overall),
		Domains: make([]models.DomainStat, 0, len(names)),
	}
	for _, name := range names {
		ds := models.DomainStat{
			DomainName:   name,
			AccuracyStat: withAccuracy(*domains[name]),
		}
		skillNames := skillsByDomain[name]
		sort.Strings(skillNames)
		for _, skill := range skillNames {
			ds.Skills = append(ds.Skills, models.SkillStat{
				SkillName:    skill,
				AccuracyStat: withAccuracy(*skills[skillKey{domain: name, skill: skill}]),
			})
		}
		out.Domains = append(out.Domains, ds)
	}
	return out
}

func withAccuracy(s models.AccuracyStat) models.AccuracyStat {
	if s.Attempted > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Attempted)
	}
	return s
}

// RecentActivity returns up to limit rows with an attempt timestamp, most
// recent first.
func RecentActivity(rows []models.ProgressRow, limit int) []models.ProgressRow {
	recent := make([]models.ProgressRow, 0, limit)
	for _, r := range rows {
		if r.LastAttemptedAt != nil {
			recent = append(recent, r)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LastAttemptedAt.After(*recent[j].LastAttemptedAt)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}
