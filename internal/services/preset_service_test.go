package services

import (
	"context"
	"strings"
	"testing"

	"github.com/example/jewelry/internal/apperr"
)

func TestUpsertSizePreset(t *testing.T) {
	ctx := context.Background()
	presets := NewPresetService(newTestDB(t))

	first, err := presets.UpsertSizePreset(ctx, "ring", SizePresetInput{Sizes: []string{"16", " 17 ", "16", ""}})
	if err != nil {
		t.Fatalf("create preset: %v", err)
	}
	if strings.Join(first.Sizes, ",") != "16,17" {
		t.Fatalf("sizes not cleaned: %v", first.Sizes)
	}

	second, err := presets.UpsertSizePreset(ctx, "ring", SizePresetInput{Sizes: []string{"18"}, Heights: []string{"2mm"}})
	if err != nil {
		t.Fatalf("replace preset: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second row")
	}

	got, err := presets.GetSizePreset(ctx, "ring")
	if err != nil {
		t.Fatalf("get preset: %v", err)
	}
	if strings.Join(got.Sizes, ",") != "18" || strings.Join(got.Heights, ",") != "2mm" {
		t.Fatalf("unexpected preset: %+v", got)
	}

	if _, err := presets.GetSizePreset(ctx, "chain"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := presets.UpsertSizePreset(ctx, " ", SizePresetInput{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClaspImages(t *testing.T) {
	ctx := context.Background()
	presets := NewPresetService(newTestDB(t))

	if _, err := presets.CreateClaspImage(ctx, ClaspImageInput{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	image, err := presets.CreateClaspImage(ctx, ClaspImageInput{Name: "Lobster", ImageURL: "/uploads/lobster.jpg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := presets.DeleteClaspImage(ctx, image.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := presets.DeleteClaspImage(ctx, image.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
