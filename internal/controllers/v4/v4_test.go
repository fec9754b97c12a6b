package v4_test

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	v4 "github.com/ledgerplan/backend/internal/controllers/v4"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type TestSuiteStandard struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func TestSuite(t *testing.T) {
	gin.SetMode("release")
	suite.Run(t, new(TestSuiteStandard))
}

func (suite *TestSuiteStandard) SetupTest() {
	db, err := models.Connect(":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		log.Fatalf("Database connection failed with: %#v", err)
	}

	err = models.Migrate(db)
	if err != nil {
		log.Fatalf("Database migration failed with: %#v", err)
	}

	suite.db = db

	router := gin.New()
	co := v4.NewController(db)
	co.RegisterRoutes(router.Group("/v4"))
	suite.router = router
}

func (suite *TestSuiteStandard) TearDownTest() {
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

// request performs a request against the test router. A non-nil body is
// marshalled to JSON.
func (suite *TestSuiteStandard) request(method, url string, body any) *httptest.ResponseRecorder {
	buffer := &bytes.Buffer{}
	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().Nil(err)
		buffer = bytes.NewBuffer(data)
	}

	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, buffer)
	req.Header.Set("Content-Type", "application/json")

	suite.router.ServeHTTP(recorder, req)
	return recorder
}

func decode[T any](suite *TestSuiteStandard, recorder *httptest.ResponseRecorder) T {
	var target T
	err := json.Unmarshal(recorder.Body.Bytes(), &target)
	suite.Require().Nil(err, "unable to parse response %q", recorder.Body.String())
	return target
}

func (suite *TestSuiteStandard) createTestElement() models.WbsElement {
	program := models.Program{Name: uuid.New().String()}
	suite.Require().Nil(suite.db.Create(&program).Error)

	element := models.WbsElement{ProgramID: program.ID, Code: uuid.New().String()}
	suite.Require().Nil(suite.db.Create(&element).Error)

	return element
}

func allocationBody(elementID uuid.UUID) map[string]any {
	return map[string]any{
		"elementId": elementID,
		"versionId": uuid.New(),
		"data": map[string]any{
			"totalAmount": "12000",
			"startDate":   "2024-01-01T00:00:00Z",
			"endDate":     "2024-12-01T00:00:00Z",
			"curveType":   "LINEAR",
		},
	}
}

func (suite *TestSuiteStandard) TestAllocationLifecycle() {
	element := suite.createTestElement()

	recorder := suite.request(http.MethodPost, "/v4/allocations", allocationBody(element.ID))
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())

	allocation := decode[models.Allocation](suite, recorder)
	suite.Assert().Equal(12, allocation.NumberOfMonths)

	recorder = suite.request(http.MethodPost, "/v4/allocations/"+allocation.ID.String()+"/push", nil)
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())

	entries := decode[[]models.LedgerEntry](suite, recorder)
	suite.Assert().Len(entries, 12)

	// A second push conflicts with the lock
	recorder = suite.request(http.MethodPost, "/v4/allocations/"+allocation.ID.String()+"/push", nil)
	suite.Assert().Equal(http.StatusConflict, recorder.Code)

	recorder = suite.request(http.MethodGet, "/v4/allocations/"+allocation.ID.String(), nil)
	suite.Require().Equal(http.StatusOK, recorder.Code)
	suite.Assert().True(decode[models.Allocation](suite, recorder).IsLocked)
}

func (suite *TestSuiteStandard) TestAllocationNotFound() {
	recorder := suite.request(http.MethodGet, "/v4/allocations/"+uuid.New().String(), nil)
	suite.Assert().Equal(http.StatusNotFound, recorder.Code)
}

func (suite *TestSuiteStandard) TestAllocationInvalidUUID() {
	recorder := suite.request(http.MethodGet, "/v4/allocations/not-a-uuid", nil)
	suite.Assert().Equal(http.StatusBadRequest, recorder.Code)
}

func (suite *TestSuiteStandard) TestAllocationValidation() {
	element := suite.createTestElement()

	body := allocationBody(element.ID)
	body["data"] = map[string]any{
		"totalAmount": "-5",
		"startDate":   "2024-01-01T00:00:00Z",
		"endDate":     "2024-12-01T00:00:00Z",
		"curveType":   "LINEAR",
	}

	recorder := suite.request(http.MethodPost, "/v4/allocations", body)
	suite.Assert().Equal(http.StatusBadRequest, recorder.Code)
}

func (suite *TestSuiteStandard) TestPreviewBreakdown() {
	recorder := suite.request(http.MethodPost, "/v4/allocations/breakdown", map[string]any{
		"totalAmount": "1200",
		"startDate":   "2024-01-01T00:00:00Z",
		"endDate":     "2024-03-01T00:00:00Z",
		"curveType":   "LINEAR",
	})
	suite.Require().Equal(http.StatusOK, recorder.Code, recorder.Body.String())

	plan := decode[models.Breakdown](suite, recorder)
	suite.Assert().Len(plan, 3)

	// Nothing may have been persisted
	var count int64
	suite.Require().Nil(suite.db.Model(&models.Allocation{}).Count(&count).Error)
	suite.Assert().Equal(int64(0), count)
}

func (suite *TestSuiteStandard) TestSplitConservationConflict() {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := models.LedgerEntry{
		ProgramID:     uuid.New(),
		PlannedDate:   &date,
		PlannedAmount: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}
	suite.Require().Nil(suite.db.Create(&entry).Error)

	recorder := suite.request(http.MethodPost, "/v4/ledger-entries/"+entry.ID.String()+"/split", map[string]any{
		"splits": []map[string]any{
			{"amount": "600", "date": "2024-03-01T00:00:00Z"},
			{"amount": "300", "date": "2024-05-01T00:00:00Z"},
		},
		"reason": "two deliveries",
	})
	suite.Assert().Equal(http.StatusConflict, recorder.Code, recorder.Body.String())
}

func (suite *TestSuiteStandard) TestSplitAndAudit() {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := models.LedgerEntry{
		ProgramID:     uuid.New(),
		PlannedDate:   &date,
		PlannedAmount: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}
	suite.Require().Nil(suite.db.Create(&entry).Error)

	recorder := suite.request(http.MethodPost, "/v4/ledger-entries/"+entry.ID.String()+"/split", map[string]any{
		"splits": []map[string]any{
			{"amount": "600", "date": "2024-03-01T00:00:00Z"},
			{"amount": "400", "date": "2024-05-01T00:00:00Z"},
		},
		"reason": "two deliveries",
	})
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())
	suite.Assert().Len(decode[[]models.LedgerEntry](suite, recorder), 2)

	recorder = suite.request(http.MethodGet, "/v4/ledger-entries/"+entry.ID.String()+"/audit", nil)
	suite.Require().Equal(http.StatusOK, recorder.Code)
	suite.Assert().Len(decode[[]models.AuditRecord](suite, recorder), 2)
}

func (suite *TestSuiteStandard) TestScheduleChange() {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := models.LedgerEntry{
		ProgramID:     uuid.New(),
		PlannedDate:   &date,
		PlannedAmount: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}
	suite.Require().Nil(suite.db.Create(&entry).Error)

	recorder := suite.request(http.MethodPost, "/v4/adjustments/schedule-change", map[string]any{
		"ledgerEntryId":  entry.ID,
		"newPlannedDate": "2024-06-01T00:00:00Z",
	})
	suite.Require().Equal(http.StatusOK, recorder.Code, recorder.Body.String())

	var reloaded models.LedgerEntry
	suite.Require().Nil(suite.db.First(&reloaded, entry.ID).Error)
	suite.Assert().True(reloaded.PlannedDate.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func (suite *TestSuiteStandard) TestScenarios() {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := models.LedgerEntry{
		ProgramID:     uuid.New(),
		PlannedDate:   &date,
		PlannedAmount: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}
	suite.Require().Nil(suite.db.Create(&entry).Error)

	recorder := suite.request(http.MethodGet, "/v4/ledger-entries/"+entry.ID.String()+"/scenarios?actualAmount=1200", nil)
	suite.Require().Equal(http.StatusOK, recorder.Code, recorder.Body.String())

	var options struct {
		Recommended string `json:"recommended"`
	}
	suite.Require().Nil(json.Unmarshal(recorder.Body.Bytes(), &options))
	suite.Assert().Equal("cost_overrun", options.Recommended)
}

func (suite *TestSuiteStandard) TestProgramLifecycle() {
	recorder := suite.request(http.MethodPost, "/v4/programs", map[string]any{"name": "Apollo", "note": "crewed flight"})
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())

	program := decode[models.Program](suite, recorder)
	suite.Assert().Equal("Apollo", program.Name)

	// Program names are unique
	recorder = suite.request(http.MethodPost, "/v4/programs", map[string]any{"name": "Apollo"})
	suite.Assert().Equal(http.StatusBadRequest, recorder.Code)

	recorder = suite.request(http.MethodPatch, "/v4/programs/"+program.ID.String(), map[string]any{"name": "Artemis"})
	suite.Require().Equal(http.StatusOK, recorder.Code, recorder.Body.String())
	suite.Assert().Equal("Artemis", decode[models.Program](suite, recorder).Name)

	recorder = suite.request(http.MethodDelete, "/v4/programs/"+program.ID.String(), nil)
	suite.Assert().Equal(http.StatusNoContent, recorder.Code)
}

func (suite *TestSuiteStandard) TestProgramDeleteWithEntries() {
	program := models.Program{Name: uuid.New().String()}
	suite.Require().Nil(suite.db.Create(&program).Error)

	entry := models.LedgerEntry{ProgramID: program.ID}
	suite.Require().Nil(suite.db.Create(&entry).Error)

	recorder := suite.request(http.MethodDelete, "/v4/programs/"+program.ID.String(), nil)
	suite.Assert().Equal(http.StatusConflict, recorder.Code)
}

func (suite *TestSuiteStandard) TestWbsElementLifecycle() {
	program := models.Program{Name: uuid.New().String()}
	suite.Require().Nil(suite.db.Create(&program).Error)

	recorder := suite.request(http.MethodPost, "/v4/wbs-elements", map[string]any{
		"programId": program.ID,
		"code":      "1.2.3",
		"name":      "Propulsion",
	})
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())
	parent := decode[models.WbsElement](suite, recorder)

	recorder = suite.request(http.MethodPost, "/v4/wbs-elements", map[string]any{
		"programId": program.ID,
		"parentId":  parent.ID,
		"code":      "1.2.3.1",
	})
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())
	child := decode[models.WbsElement](suite, recorder)

	// The parent cannot go while the child exists
	recorder = suite.request(http.MethodDelete, "/v4/wbs-elements/"+parent.ID.String(), nil)
	suite.Assert().Equal(http.StatusConflict, recorder.Code)

	recorder = suite.request(http.MethodDelete, "/v4/wbs-elements/"+child.ID.String(), nil)
	suite.Assert().Equal(http.StatusNoContent, recorder.Code)

	recorder = suite.request(http.MethodGet, "/v4/wbs-elements?program="+program.ID.String(), nil)
	suite.Require().Equal(http.StatusOK, recorder.Code)
	suite.Assert().Len(decode[[]models.WbsElement](suite, recorder), 1)
}

func (suite *TestSuiteStandard) TestWbsElementUnknownProgram() {
	recorder := suite.request(http.MethodPost, "/v4/wbs-elements", map[string]any{
		"programId": uuid.New(),
		"code":      "1.1",
	})
	suite.Assert().Equal(http.StatusNotFound, recorder.Code)
}

func (suite *TestSuiteStandard) TestLedgerEntryLifecycle() {
	program := models.Program{Name: uuid.New().String()}
	suite.Require().Nil(suite.db.Create(&program).Error)

	recorder := suite.request(http.MethodPost, "/v4/ledger-entries", map[string]any{
		"programId":     program.ID,
		"costCategory":  "Material",
		"plannedDate":   "2024-03-01T00:00:00Z",
		"plannedAmount": "1000",
	})
	suite.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())
	entry := decode[models.LedgerEntry](suite, recorder)

	// Creation and deletion both leave audit records
	recorder = suite.request(http.MethodDelete, "/v4/ledger-entries/"+entry.ID.String(), nil)
	suite.Assert().Equal(http.StatusNoContent, recorder.Code)

	var records []models.AuditRecord
	suite.Require().Nil(suite.db.Where("ledger_entry_id = ?", entry.ID).Order("created_at ASC").Find(&records).Error)
	suite.Require().Len(records, 2)
	suite.Assert().Equal(models.AuditCreated, records[0].Action)
	suite.Assert().Equal(models.AuditDeleted, records[1].Action)
}

func (suite *TestSuiteStandard) TestLedgerEntryDeleteFromBOE() {
	element := suite.createTestElement()

	recorder := suite.request(http.MethodPost, "/v4/allocations", allocationBody(element.ID))
	suite.Require().Equal(http.StatusCreated, recorder.Code)
	allocation := decode[models.Allocation](suite, recorder)

	recorder = suite.request(http.MethodPost, "/v4/allocations/"+allocation.ID.String()+"/push", nil)
	suite.Require().Equal(http.StatusCreated, recorder.Code)
	entries := decode[[]models.LedgerEntry](suite, recorder)

	recorder = suite.request(http.MethodDelete, "/v4/ledger-entries/"+entries[0].ID.String(), nil)
	suite.Assert().Equal(http.StatusConflict, recorder.Code, "entries created from an allocation are ledger history")
}
