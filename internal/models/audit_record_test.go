package models_test

import (
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
)

func (suite *TestSuiteStandard) TestAuditRecordImmutableUpdate() {
	record := suite.createTestAuditRecord(models.AuditRecord{
		LedgerEntryID: uuid.New(),
		Action:        models.AuditCreated,
		Source:        models.SourceManual,
		NewValues:     types.JSONMap{"planned_amount": "100"},
	})

	err := suite.db.Model(&record).Update("action", models.AuditDeleted).Error
	suite.Assert().ErrorIs(err, models.ErrAuditRecordImmutable)
}

func (suite *TestSuiteStandard) TestAuditRecordImmutableDelete() {
	record := suite.createTestAuditRecord(models.AuditRecord{
		LedgerEntryID: uuid.New(),
		Action:        models.AuditCreated,
		Source:        models.SourceManual,
	})

	err := suite.db.Delete(&record).Error
	suite.Assert().ErrorIs(err, models.ErrAuditRecordImmutable)
}

func (suite *TestSuiteStandard) TestAuditRecordJSONMapRoundtrip() {
	record := suite.createTestAuditRecord(models.AuditRecord{
		LedgerEntryID: uuid.New(),
		Action:        models.AuditUpdated,
		Source:        models.SourceManual,
		PreviousValues: types.JSONMap{
			"planned_amount": "100",
		},
		NewValues: types.JSONMap{
			"planned_amount": "150",
		},
	})

	var reloaded models.AuditRecord
	err := suite.db.First(&reloaded, record.ID).Error
	suite.Require().Nil(err)

	suite.Assert().Equal("100", reloaded.PreviousValues["planned_amount"])
	suite.Assert().Equal("150", reloaded.NewValues["planned_amount"])
}
