package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"attestry/internal/registry/handler"
	"attestry/internal/registry/service"
	memorystore "attestry/internal/registry/store/memory"
	id "attestry/pkg/domain"
	"attestry/pkg/platform/events"
	eventsmemory "attestry/pkg/platform/events/store/memory"
	"attestry/pkg/requestcontext"
	"attestry/pkg/testutil"
)

const (
	callerHeader = "X-Test-Caller"
	owner        = "owner"
	alice        = "acct-alice"
	bob          = "acct-bob"
)

// testAuth stands in for the JWT middleware: the caller comes from a header
// and requests without one are rejected, matching the real middleware's
// contract of never passing an unauthenticated request through.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := id.ParseAccountID(r.Header.Get(callerHeader))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(r.Context(), account)))
	})
}

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	svc    *service.Service
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = service.NewService(
		id.AccountID(owner),
		memorystore.NewIdentityStore(),
		memorystore.NewCredentialStore(),
		memorystore.NewIssuerStore(),
		events.NewPublisher(eventsmemory.NewInMemoryStore()),
		service.WithLogger(logger),
	)
	s.Require().NoError(s.svc.Bootstrap(context.Background()))

	s.router = chi.NewRouter()
	handler.New(s.svc, logger, nil, testAuth).Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(req *http.Request, caller string) *http.Request {
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	return req
}

func (s *HandlerSuite) createAlice() {
	req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity",
		map[string]string{"name": "Alice", "email": "a@x.com", "profileHash": "Qm1"}), alice)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)
}

func (s *HandlerSuite) TestCreateIdentity() {
	s.Run("creates and returns the identity", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity",
			map[string]string{"name": "Alice", "email": "a@x.com", "profileHash": "Qm1"}), alice)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusCreated, rr.Code)

		var resp struct {
			Account     string `json:"account"`
			Name        string `json:"name"`
			Email       string `json:"email"`
			ProfileHash string `json:"profileHash"`
		}
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.Equal(alice, resp.Account)
		s.Equal("Alice", resp.Name)
		s.Equal("a@x.com", resp.Email)
		s.Equal("Qm1", resp.ProfileHash)
	})

	s.Run("duplicate creation answers 409 conflict", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity",
			map[string]string{"name": "Alice", "email": "a@x.com"}), alice)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusConflict, rr.Code)

		var resp struct {
			Error string `json:"error"`
		}
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.Equal("conflict", resp.Error)
	})

	s.Run("missing fields answer 400", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity",
			map[string]string{"email": "b@x.com"}), bob)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("unauthenticated requests never reach the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity",
			map[string]string{"name": "Eve", "email": "e@x.com"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *HandlerSuite) TestUpdateIdentity() {
	s.createAlice()

	req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/registry/identity",
		map[string]string{"name": "Alicia"}), alice)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	testutil.DecodeJSON(s.T(), rr, &resp)
	s.Equal("Alicia", resp.Name)
	s.Equal("a@x.com", resp.Email)

	req = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/registry/identity",
		map[string]string{"name": "Ghost"}), bob)
	rr = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestGetIdentity() {
	s.createAlice()

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/"+alice))
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/acct-ghost"))
	s.Require().Equal(http.StatusNotFound, rr.Code)
	var resp struct {
		Error string `json:"error"`
	}
	testutil.DecodeJSON(s.T(), rr, &resp)
	s.Equal("not_found", resp.Error)
}

func (s *HandlerSuite) TestExistsAndCount() {
	s.createAlice()

	var exists struct {
		Exists bool `json:"exists"`
	}
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/"+alice+"/exists"))
	s.Require().Equal(http.StatusOK, rr.Code)
	testutil.DecodeJSON(s.T(), rr, &exists)
	s.True(exists.Exists)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/acct-ghost/exists"))
	s.Require().Equal(http.StatusOK, rr.Code)
	testutil.DecodeJSON(s.T(), rr, &exists)
	s.False(exists.Exists)

	var count struct {
		Count int `json:"count"`
	}
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/"+alice+"/credentials/count"))
	s.Require().Equal(http.StatusOK, rr.Code)
	testutil.DecodeJSON(s.T(), rr, &count)
	s.Equal(0, count.Count)
}

func (s *HandlerSuite) TestCredentialLifecycle() {
	s.createAlice()

	s.Run("owner issues a credential", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials",
			map[string]string{"credentialType": "degree", "dataHash": "Qm2"}), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusCreated, rr.Code)

		var resp struct {
			Index          int    `json:"index"`
			CredentialType string `json:"credentialType"`
			Issuer         string `json:"issuer"`
			Valid          bool   `json:"valid"`
		}
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.Equal(0, resp.Index)
		s.Equal("degree", resp.CredentialType)
		s.Equal(owner, resp.Issuer)
		s.True(resp.Valid)
	})

	s.Run("non-issuer callers answer 403", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials",
			map[string]string{"credentialType": "degree", "dataHash": "Qm3"}), bob)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("issuing to an unknown holder answers 404", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity/acct-ghost/credentials",
			map[string]string{"credentialType": "degree", "dataHash": "Qm3"}), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("credential list uses index-aligned parallel arrays", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials",
			map[string]string{"credentialType": "license", "dataHash": "Qm4"}), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusCreated, rr.Code)

		var resp struct {
			Types      []string    `json:"types"`
			DataHashes []string    `json:"dataHashes"`
			Issuers    []string    `json:"issuers"`
			IssuedAts  []time.Time `json:"issuedAts"`
			Validities []bool      `json:"validities"`
		}
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/identity/"+alice+"/credentials"))
		s.Require().Equal(http.StatusOK, rr.Code)
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.Equal([]string{"degree", "license"}, resp.Types)
		s.Equal([]string{"Qm2", "Qm4"}, resp.DataHashes)
		s.Equal([]string{owner, owner}, resp.Issuers)
		s.Len(resp.IssuedAts, 2)
		s.Equal([]bool{true, true}, resp.Validities)
	})

	s.Run("revocation clears the flag once", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials/0/revoke"), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)

		var resp struct {
			Valid bool `json:"valid"`
		}
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.False(resp.Valid)

		req = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials/0/revoke"), owner)
		rr = testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusConflict, rr.Code)
		var errResp struct {
			Error string `json:"error"`
		}
		testutil.DecodeJSON(s.T(), rr, &errResp)
		s.Equal("already_revoked", errResp.Error)
	})

	s.Run("bad revocation indices answer 400 or 404", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials/abc/revoke"), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)

		req = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials/99/revoke"), owner)
		rr = testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})
}

func (s *HandlerSuite) TestIssuerRoutes() {
	s.Run("non-owner cannot add issuers", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/issuers",
			map[string]string{"issuer": bob}), bob)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("owner adds and removes an issuer", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/issuers",
			map[string]string{"issuer": bob}), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusNoContent, rr.Code)

		var status struct {
			Authorized bool `json:"authorized"`
		}
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/issuers/"+bob))
		s.Require().Equal(http.StatusOK, rr.Code)
		testutil.DecodeJSON(s.T(), rr, &status)
		s.True(status.Authorized)

		req = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/registry/issuers/"+bob), owner)
		rr = testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusNoContent, rr.Code)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/issuers/"+bob))
		testutil.DecodeJSON(s.T(), rr, &status)
		s.False(status.Authorized)
	})

	s.Run("an empty issuer account answers 400", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/issuers",
			map[string]string{"issuer": ""}), owner)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestEventJournal() {
	s.createAlice()
	req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/identity/"+alice+"/credentials",
		map[string]string{"credentialType": "degree", "dataHash": "Qm2"}), owner)
	s.Require().Equal(http.StatusCreated, testutil.DoRequest(s.router, req).Code)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/events/"+alice))
	s.Require().Equal(http.StatusOK, rr.Code)

	var evts []struct {
		Kind           string `json:"kind"`
		Account        string `json:"account"`
		Issuer         string `json:"issuer"`
		CredentialType string `json:"credentialType"`
	}
	testutil.DecodeJSON(s.T(), rr, &evts)
	s.Require().Len(evts, 2)
	s.Equal("identity_created", evts[0].Kind)
	s.Equal("credential_added", evts[1].Kind)
	s.Equal(owner, evts[1].Issuer)
	s.Equal("degree", evts[1].CredentialType)
}
