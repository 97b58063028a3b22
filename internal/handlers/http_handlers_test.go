package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/stretchr/testify/require"

	"raffle/internal/models"
	"raffle/internal/services"
	"raffle/internal/store"
	"raffle/internal/vrf"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	defer logger.Init("handlers-test", false, false, io.Discard).Close()
	os.Exit(m.Run())
}

type stubProvider struct {
	nextID string
}

func (p *stubProvider) RequestRandomWords(vrf.RandomnessRequest) (string, error) {
	return p.nextID, nil
}

type stubRail struct {
	err error
}

func (r *stubRail) Transfer(common.Address, *big.Int) error {
	return r.err
}

type env struct {
	router  *gin.Engine
	service *services.RaffleService
	rail    *stubRail
}

func newEnv(t *testing.T) *env {
	t.Helper()

	settings := models.DrawSettings{
		EntranceFee:          big.NewInt(100),
		Interval:             time.Millisecond,
		SubscriptionID:       1,
		RequestConfirmations: 3,
		CallbackGasLimit:     500000,
		NumWords:             1,
	}
	rail := &stubRail{}
	sink := store.NewMemorySink(100)
	service := services.NewRaffleService(settings, &stubProvider{nextID: "req-1"}, rail, sink)

	router := gin.New()
	NewHTTPHandler(service, sink).RegisterRoutes(router)

	return &env{router: router, service: service, rail: rail}
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

const participant = "0x00000000000000000000000000000000000000a1"

func (e *env) enterThree(t *testing.T) {
	t.Helper()
	for _, p := range []string{
		participant,
		"0x00000000000000000000000000000000000000b2",
		"0x00000000000000000000000000000000000000c3",
	} {
		rec, _ := e.do(t, http.MethodPost, "/api/entries", `{"participant":"`+p+`","amountWei":"100"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestCreateEntry(t *testing.T) {
	t.Run("accepts a valid deposit", func(t *testing.T) {
		e := newEnv(t)

		rec, body := e.do(t, http.MethodPost, "/api/entries", `{"participant":"`+participant+`","amountWei":"100"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, float64(0), body["index"])
		require.Equal(t, float64(1), body["entrantCount"])
	})

	t.Run("rejects a malformed address", func(t *testing.T) {
		e := newEnv(t)

		rec, _ := e.do(t, http.MethodPost, "/api/entries", `{"participant":"not-an-address","amountWei":"100"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a deposit below the fee", func(t *testing.T) {
		e := newEnv(t)

		rec, body := e.do(t, http.MethodPost, "/api/entries", `{"participant":"`+participant+`","amountWei":"99"}`)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Equal(t, "100", body["entranceFeeWei"])
	})

	t.Run("rejects entries while a draw is pending", func(t *testing.T) {
		e := newEnv(t)
		e.enterThree(t)
		time.Sleep(5 * time.Millisecond)
		rec, _ := e.do(t, http.MethodPost, "/api/upkeep", "")
		require.Equal(t, http.StatusAccepted, rec.Code)

		rec, _ = e.do(t, http.MethodPost, "/api/entries", `{"participant":"`+participant+`","amountWei":"100"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetRaffle(t *testing.T) {
	e := newEnv(t)
	e.enterThree(t)

	rec, body := e.do(t, http.MethodGet, "/api/raffle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OPEN", body["state"])
	require.Equal(t, float64(3), body["entrantCount"])
	require.Equal(t, "300", body["pooledBalanceWei"])
	require.Equal(t, "100", body["entranceFeeWei"])
}

func TestGetEntrant(t *testing.T) {
	e := newEnv(t)
	e.enterThree(t)

	rec, body := e.do(t, http.MethodGet, "/api/entrants/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, common.HexToAddress(participant).Hex(), body["participant"])

	rec, _ = e.do(t, http.MethodGet, "/api/entrants/3", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/entrants/zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpkeepEndpoints(t *testing.T) {
	t.Run("reports the trigger diagnostic", func(t *testing.T) {
		e := newEnv(t)

		rec, body := e.do(t, http.MethodGet, "/api/upkeep", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, false, body["upkeepNeeded"])
		diag := body["diagnostic"].(map[string]any)
		require.Equal(t, false, diag["hasEntrants"])
		require.Equal(t, true, diag["open"])
	})

	t.Run("rejects a premature draw request with a snapshot", func(t *testing.T) {
		e := newEnv(t)

		rec, body := e.do(t, http.MethodPost, "/api/upkeep", "")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "OPEN", body["state"])
		require.Equal(t, float64(0), body["entrantCount"])
	})
}

func TestFulfillmentWebhook(t *testing.T) {
	requestDraw := func(t *testing.T, e *env) {
		t.Helper()
		e.enterThree(t)
		time.Sleep(5 * time.Millisecond)
		rec, body := e.do(t, http.MethodPost, "/api/upkeep", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, "req-1", body["requestId"])
	}

	t.Run("closes the cycle and answers replays idempotently", func(t *testing.T) {
		e := newEnv(t)
		requestDraw(t, e)

		rec, body := e.do(t, http.MethodPost, "/api/vrf/fulfillments", `{"requestId":"req-1","randomWords":["7"]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "fulfilled", body["status"])
		// 7 mod 3 selects slot 1.
		winner := common.HexToAddress("0x00000000000000000000000000000000000000b2").Hex()
		require.Equal(t, winner, body["winner"])

		rec, body = e.do(t, http.MethodPost, "/api/vrf/fulfillments", `{"requestId":"req-1","randomWords":["7"]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "already_fulfilled", body["status"])
		require.Equal(t, winner, body["winner"])
	})

	t.Run("rejects an unknown request id", func(t *testing.T) {
		e := newEnv(t)
		requestDraw(t, e)

		rec, _ := e.do(t, http.MethodPost, "/api/vrf/fulfillments", `{"requestId":"req-9","randomWords":["7"]}`)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("reports a failed payout without resetting", func(t *testing.T) {
		e := newEnv(t)
		requestDraw(t, e)
		e.rail.err = errors.New("rail down")

		rec, _ := e.do(t, http.MethodPost, "/api/vrf/fulfillments", `{"requestId":"req-1","randomWords":["7"]}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, 3, e.service.EntrantCount())
		require.Equal(t, models.StateCalculating, e.service.State())
	})

	t.Run("rejects malformed words", func(t *testing.T) {
		e := newEnv(t)
		requestDraw(t, e)

		rec, _ := e.do(t, http.MethodPost, "/api/vrf/fulfillments", `{"requestId":"req-1","randomWords":["seven"]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEventEndpoints(t *testing.T) {
	e := newEnv(t)
	e.enterThree(t)

	rec, body := e.do(t, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["events"], 3)

	rec, body = e.do(t, http.MethodGet, "/api/events?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["events"], 2)

	rec, _ = e.do(t, http.MethodGet, "/api/events/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), models.EventEntered)
}
