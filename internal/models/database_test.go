package models_test

import (
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/models"
)

func (suite *TestSuiteStandard) TestResourceNotFound() {
	var allocation models.Allocation
	err := suite.db.First(&allocation, uuid.New()).Error

	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
	suite.Assert().Equal("there is no allocation matching your query", err.Error())
}

func (suite *TestSuiteStandard) TestProgramNameNotUnique() {
	_ = suite.createTestProgram(models.Program{Name: "Apollo"})

	err := suite.db.Create(&models.Program{Name: "Apollo"}).Error
	suite.Assert().ErrorIs(err, models.ErrProgramNameNotUnique)
}

func (suite *TestSuiteStandard) TestGeneralErrorOnClosedDB() {
	suite.CloseDB()

	var program models.Program
	err := suite.db.First(&program, uuid.New()).Error

	suite.Assert().ErrorIs(err, models.ErrGeneral)
}
