package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type ExecCmd struct {
	API    string `help:"Job API base URL" default:"http://localhost:8080" env:"JOBCTL_API"`
	Token  string `help:"Bearer access token" required:"" env:"JOBCTL_TOKEN"`
	Action string `help:"Lifecycle action" required:"" enum:"start,complete,admin_approve,admin_reject"`
	Job    string `help:"Job id" required:""`
	Reason string `help:"Rejection reason (admin_reject)" default:""`

	out io.Writer
}

func (e *ExecCmd) Run(ctx context.Context) error {
	out := e.out
	if out == nil {
		out = os.Stdout
	}

	resp, code, err := newAPIClient(e.API, e.Token).execute(ctx, executeRequest{
		Action:          e.Action,
		JobID:           e.Job,
		RejectionReason: e.Reason,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("%s failed (HTTP %d): %s", e.Action, code, resp.Error)
	}
	return nil
}
