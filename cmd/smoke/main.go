package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"groupgate.org/internal/authn"
	"groupgate.org/internal/client"
	"groupgate.org/internal/groups"
	"groupgate.org/internal/obs"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		baseURL = pflag.String("url", envOr("GROUPGATE_API_URL", "http://localhost:8080"), "API base URL")
		secret  = pflag.String("secret", os.Getenv("GROUPGATE_AUTH_SECRET"), "token signing secret shared with the API")
		issuer  = pflag.String("issuer", envOr("GROUPGATE_AUTH_ISSUER", authn.DefaultIssuer), "token issuer")
	)
	pflag.Parse()

	log, err := obs.NewLogger("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	tokens, err := authn.New(*secret, authn.WithIssuer(*issuer))
	if err != nil {
		log.Fatal("token signer", zap.Error(err))
	}
	api, err := client.New(*baseURL, client.WithRetries(3, 200*time.Millisecond))
	if err != nil {
		log.Fatal("client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx, api, tokens); err != nil {
		log.Fatal("smoke test failed", zap.Error(err))
	}
	log.Info("smoke test passed", zap.String("url", *baseURL))
}

// run walks the owner/member scenario with two freshly minted users.
func run(ctx context.Context, api *client.Client, tokens *authn.Tokens) error {
	if err := api.Ready(ctx); err != nil {
		return fmt.Errorf("readyz: %w", err)
	}

	suffix := uuid.NewString()[:8]
	as := func(user string) (*client.Client, error) {
		tok, err := tokens.Issue(user, 5*time.Minute)
		if err != nil {
			return nil, err
		}
		return api.As(tok), nil
	}
	owner, err := as("smoke-owner-" + suffix)
	if err != nil {
		return err
	}
	joinerID := "smoke-joiner-" + suffix
	joiner, err := as(joinerID)
	if err != nil {
		return err
	}

	g, err := owner.CreateGroup(ctx, "smoke-"+suffix, "smoke test group")
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	defer func() { _ = owner.DeleteGroup(context.Background(), g.ID) }()

	jr, err := joiner.CreateJoinRequest(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("join request: %w", err)
	}
	if _, err := joiner.ListMembers(ctx, g.ID); !errors.Is(err, groups.ErrForbidden) {
		return fmt.Errorf("outsider listed members: %v", err)
	}
	res, err := owner.ApproveJoinRequest(ctx, g.ID, jr.ID)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if res.Membership == nil || res.Membership.UserID != joinerID {
		return fmt.Errorf("approval did not create membership: %+v", res)
	}

	members, err := joiner.ListMembers(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("list members as member: %w", err)
	}
	if len(members) != 2 {
		return fmt.Errorf("expected 2 members, got %d", len(members))
	}

	roles, err := owner.ListRoles(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	var memberRole string
	for _, r := range roles {
		if r.Name == groups.DefaultRoleName {
			memberRole = r.ID
		}
	}
	if _, err := joiner.UpdatePriority(ctx, g.ID, memberRole, 1); !errors.Is(err, groups.ErrForbidden) {
		return fmt.Errorf("member changed role priority: %v", err)
	}
	return joiner.LeaveGroup(ctx, g.ID)
}
