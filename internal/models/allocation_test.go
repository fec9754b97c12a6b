package models_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) testAllocation(locked bool) models.Allocation {
	program := suite.createTestProgram(models.Program{})
	element := suite.createTestWbsElement(models.WbsElement{ProgramID: program.ID})

	return suite.createTestAllocation(models.Allocation{
		ElementID:   element.ID,
		VersionID:   uuid.New(),
		TotalAmount: decimal.NewFromInt(1200),
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		CurveType:   models.CurveLinear,
		IsLocked:    locked,
	})
}

func (suite *TestSuiteStandard) TestAllocationEndsBeforeStart() {
	err := suite.db.Create(&models.Allocation{
		ElementID:   uuid.New(),
		TotalAmount: decimal.NewFromInt(100),
		StartDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CurveType:   models.CurveLinear,
	}).Error

	suite.Assert().ErrorIs(err, models.ErrAllocationEndsBeforeStart)
	suite.Assert().ErrorIs(err, models.ErrConstraintViolation)
}

func (suite *TestSuiteStandard) TestAllocationLockedUpdate() {
	allocation := suite.testAllocation(true)

	err := suite.db.Model(&allocation).Update("total_amount", decimal.NewFromInt(2400)).Error
	suite.Assert().ErrorIs(err, models.ErrAllocationLocked)
}

func (suite *TestSuiteStandard) TestAllocationLockedWriteOptOut() {
	allocation := suite.testAllocation(true)

	plan := models.Breakdown{
		"2024-01": {Amount: decimal.NewFromInt(100), Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	err := models.WithLockedAllocationWrite(suite.db).
		Model(&allocation).
		Update("monthly_breakdown", plan).Error
	suite.Assert().Nil(err)
}

func (suite *TestSuiteStandard) TestAllocationLockedDelete() {
	allocation := suite.testAllocation(true)

	err := suite.db.Delete(&allocation).Error
	suite.Assert().ErrorIs(err, models.ErrAllocationLocked)
}

func (suite *TestSuiteStandard) TestAllocationUnlockedDelete() {
	allocation := suite.testAllocation(false)

	err := suite.db.Delete(&allocation).Error
	suite.Assert().Nil(err)
}

func (suite *TestSuiteStandard) TestAllocationDatesUTC() {
	tz, _ := time.LoadLocation("Europe/Berlin")

	allocation := models.Allocation{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, tz),
		EndDate:   time.Date(2024, 12, 1, 0, 0, 0, 0, tz),
	}

	err := allocation.BeforeSave(nil)
	suite.Assert().Nil(err)

	suite.Assert().Equal(time.UTC, allocation.StartDate.Location())
	suite.Assert().Equal(time.UTC, allocation.EndDate.Location())
}

func (suite *TestSuiteStandard) TestBreakdownRoundtrip() {
	allocation := suite.testAllocation(false)

	plan := models.Breakdown{
		"2024-01": {Amount: decimal.NewFromFloat(100.5), Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		"2024-02": {Amount: decimal.NewFromFloat(99.5), Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	err := suite.db.Model(&allocation).Update("monthly_breakdown", plan).Error
	suite.Require().Nil(err)

	var reloaded models.Allocation
	err = suite.db.First(&reloaded, allocation.ID).Error
	suite.Require().Nil(err)

	suite.Assert().Equal([]string{"2024-01", "2024-02"}, reloaded.MonthlyBreakdown.Months())
	suite.Assert().True(reloaded.MonthlyBreakdown.Total().Equal(decimal.NewFromInt(200)))
}
