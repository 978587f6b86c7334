package kvstore

import (
	"testing"

	"go.uber.org/zap"
)

func TestZapLogger(t *testing.T) {
	logger := NewZapLogger(zap.NewNop())
	logger.Debug("debug", "k", "v")
	logger.Info("info", "k", "v")
	logger.Warn("warn", "k", "v")
	logger.Error("error", "k", "v")

	if err := logger.Sync(); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
}

func TestNewProductionZapLogger(t *testing.T) {
	logger, err := NewProductionZapLogger()
	if err != nil {
		t.Fatalf("NewProductionZapLogger failed: %v", err)
	}
	logger.Info("production logger works")
}

func TestNewDevelopmentZapLogger(t *testing.T) {
	logger, err := NewDevelopmentZapLogger()
	if err != nil {
		t.Fatalf("NewDevelopmentZapLogger failed: %v", err)
	}
	logger.Debug("development logger works")
}
