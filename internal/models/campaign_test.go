package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     CampaignStatus
		to       CampaignStatus
		expected bool
	}{
		// Happy path
		{CampaignStatusGenerating, CampaignStatusReady, true},
		{CampaignStatusGenerating, CampaignStatusFailed, true},

		// Terminal states are never re-entered
		{CampaignStatusReady, CampaignStatusGenerating, false},
		{CampaignStatusFailed, CampaignStatusGenerating, false},
		{CampaignStatusReady, CampaignStatusFailed, false},
		{CampaignStatusFailed, CampaignStatusReady, false},

		// Self and unknown
		{CampaignStatusGenerating, CampaignStatusGenerating, false},
		{"nonexistent", CampaignStatusReady, false},
		{CampaignStatusGenerating, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			result := IsValidCampaignTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalCampaignStatusesHaveNoTransitions(t *testing.T) {
	for status, transitions := range ValidCampaignTransitions {
		if status.IsTerminal() && len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestCampaignSourceKind(t *testing.T) {
	id := uuid.New()
	text := "launch week"

	tests := []struct {
		name     string
		campaign Campaign
		expected string
	}{
		{"product", Campaign{ProductID: &id}, SourceProduct},
		{"block", Campaign{BlockID: &id}, SourceBlock},
		{"custom", Campaign{CustomContent: &text}, SourceCustom},
		{"none", Campaign{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.campaign.SourceKind(); got != tt.expected {
				t.Errorf("SourceKind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input   string
		want    Platform
		wantErr bool
	}{
		{"twitter", PlatformTwitter, false},
		{" LinkedIn ", PlatformLinkedIn, false},
		{"LINK_IN_BIO", PlatformLinkInBio, false},
		{"myspace", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlatform(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSocialPlatformsExcludeNonSocial(t *testing.T) {
	for _, p := range SocialPlatforms() {
		if !p.IsSocial() {
			t.Errorf("%q should be social", p)
		}
	}
	if PlatformEmail.IsSocial() || PlatformLinkInBio.IsSocial() {
		t.Error("EMAIL and LINK_IN_BIO are not social platforms")
	}
}

func TestDefaultOptimalTimesNeverEmpty(t *testing.T) {
	for _, p := range allPlatforms {
		slots := DefaultOptimalTimes(p)
		if len(slots) == 0 {
			t.Fatalf("no default slots for %q", p)
		}

		seen := map[int]bool{}
		for i, s := range slots {
			if s.Rank == nil || *s.Rank != i+1 {
				t.Errorf("%q slot %d has rank %v, want %d", p, i, s.Rank, i+1)
			}
			if seen[*s.Rank] {
				t.Errorf("%q duplicate rank %d", p, *s.Rank)
			}
			seen[*s.Rank] = true
			if !s.IsDefault || s.Platform != p {
				t.Errorf("%q slot %d not marked default for platform", p, i)
			}
			if s.DayOfWeek < 0 || s.DayOfWeek > 6 || s.HourOfDay < 0 || s.HourOfDay > 23 {
				t.Errorf("%q slot %d out of range: %d/%d", p, i, s.DayOfWeek, s.HourOfDay)
			}
		}
	}
}

func TestPostStatusCanCancel(t *testing.T) {
	tests := []struct {
		status   PostStatus
		expected bool
	}{
		{PostStatusPending, true},
		{PostStatusProcessing, false},
		{PostStatusPublished, false},
		{PostStatusFailed, false},
		{PostStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanCancel(); got != tt.expected {
				t.Errorf("CanCancel(%q) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestAnalysisJobIsTerminal(t *testing.T) {
	job := AnalysisJob{Status: AnalysisStatusRunning, CreatedAt: time.Now()}
	if job.IsTerminal() {
		t.Error("RUNNING must not be terminal")
	}
	job.Status = AnalysisStatusCompleted
	if !job.IsTerminal() {
		t.Error("COMPLETED must be terminal")
	}
}
