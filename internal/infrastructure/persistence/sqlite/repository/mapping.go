package repository

import (
	"time"

	"prmerit/internal/infrastructure/persistence/sqlite/model"
	"prmerit/internal/ports"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func mapOrganization(row model.Organization) ports.Organization {
	return ports.Organization{
		OrgID:          row.OrgID,
		Name:           row.Name,
		InstallationID: row.InstallationID,
	}
}

func mapTrackedRepo(row model.TrackedRepo) ports.TrackedRepo {
	return ports.TrackedRepo{
		RepoID:   row.RepoID,
		OrgID:    row.OrgID,
		FullName: row.FullName,
	}
}

func mapRuleset(row model.Ruleset) ports.Ruleset {
	return ports.Ruleset{
		RulesetID: row.RulesetID,
		OrgID:     row.OrgID,
		Key:       row.Key,
		Name:      row.Name,
		Active:    row.Active,
	}
}

func mapDeveloper(row model.DeveloperIdentity) ports.Developer {
	return ports.Developer{
		DeveloperID:    row.DeveloperID,
		PlatformUserID: row.PlatformUserID,
		Login:          row.Login,
		AvatarURL:      row.AvatarURL,
	}
}

func mapPullRequest(row model.PullRequest) ports.PullRequestRecord {
	return ports.PullRequestRecord{
		PullRequestID: row.PullRequestID,
		OrgID:         row.OrgID,
		RepoID:        row.RepoID,
		PlatformID:    row.PlatformPRID,
		Number:        row.Number,
		Title:         row.Title,
		Body:          row.Body,
		AuthorID:      row.AuthorID,
		MergedAt:      row.MergedAt,
		Additions:     row.Additions,
		Deletions:     row.Deletions,
		ChangedFiles:  row.ChangedFiles,
		HeadSHA:       row.HeadSHA,
		BaseSHA:       row.BaseSHA,
		HTMLURL:       row.HTMLURL,
		LastSyncedAt:  row.LastSyncedAt,
	}
}

func mapEvaluation(row model.Evaluation) ports.EvaluationRecord {
	return ports.EvaluationRecord{
		EvaluationID:      row.EvaluationID,
		PullRequestID:     row.PullRequestID,
		RulesetID:         row.RulesetID,
		ComponentKey:      row.ComponentKey,
		SeverityKey:       row.SeverityKey,
		IssueLinked:       row.IssueLinked,
		FixImplemented:    row.FixImplemented,
		Documented:        row.Documented,
		Tested:            row.Tested,
		IsEligible:        row.IsEligible,
		BasePoints:        row.BasePoints,
		Multiplier:        row.Multiplier,
		FinalScore:        row.FinalScore,
		ComponentReason:   row.ComponentReason,
		SeverityReason:    row.SeverityReason,
		EligibilityReason: row.EligibilityReason,
		RawVerdict:        row.RawVerdict,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
