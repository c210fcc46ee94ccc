package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// CachedDirectory fronts the patient repository with a Redis snapshot
// cache so that batched refreshes do not re-read the same patient for
// every definition.
type CachedDirectory struct {
	repo   *Repository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedDirectory(repo *Repository, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{repo: repo, client: client, ttl: ttl}
}

func snapshotKey(patientID string) string {
	return fmt.Sprintf("snapshot:%s", patientID)
}

func (d *CachedDirectory) GetSnapshot(ctx context.Context, patientID string) (models.PatientSnapshot, error) {
	if d.client != nil {
		data, err := d.client.Get(ctx, snapshotKey(patientID)).Bytes()
		if err == nil {
			var snapshot models.PatientSnapshot
			if err := json.Unmarshal(data, &snapshot); err == nil {
				return snapshot, nil
			}
		} else if err != redis.Nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("snapshot cache read failed")
		}
	}

	snapshot, err := d.repo.GetSnapshot(ctx, patientID)
	if err != nil {
		return models.PatientSnapshot{}, err
	}

	if d.client != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := d.client.Set(ctx, snapshotKey(patientID), data, d.ttl).Err(); err != nil {
				logger.Log.WithError(err).WithField("patient_id", patientID).Warn("snapshot cache write failed")
			}
		}
	}
	return snapshot, nil
}

func (d *CachedDirectory) ListPatientIDs(ctx context.Context) ([]string, error) {
	return d.repo.ListPatientIDs(ctx)
}

// Invalidate drops the cached snapshot after a patient-record change.
func (d *CachedDirectory) Invalidate(ctx context.Context, patientID string) error {
	if d.client == nil {
		return nil
	}
	return d.client.Del(ctx, snapshotKey(patientID)).Err()
}
