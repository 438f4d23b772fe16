package ayontest

import (
	"context"
	"fmt"

	"github.com/ynput/ayonfixt/internal/addon"
	"github.com/ynput/ayonfixt/pkg/ayon"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

// WaitForEvent polls the event until it finishes
func WaitForEvent(ctx context.Context, client *ayon.Client, eventID string, opts ayon.PollOptions) (*ayon.Event, error) {
	return client.WaitForEvent(ctx, eventID, opts)
}

// WaitForServerRestart restarts the server and waits until it answers again
func WaitForServerRestart(ctx context.Context, client *ayon.Client, opts ayon.PollOptions) error {
	return client.RestartAndWait(ctx, opts)
}

// CreateRepresentation builds a representation payload
func CreateRepresentation(params ayon.RepresentationParams) (ayon.Representation, error) {
	return ayon.NewRepresentation(params)
}

// ReplaceStringInFile replaces every occurrence of old with new in path
func ReplaceStringInFile(path, old, new string) error {
	return addon.ReplaceInFile(path, old, new)
}

func arg[T any](helper string, args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("%s: missing argument %d", helper, i+1)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%s: argument %d is %T, want %T", helper, i+1, args[i], zero)
	}
	return v, nil
}

// wait_for_event(eventID)
func (p *Plugin) waitForEventHelper(h fixture.Handle, args ...any) (any, error) {
	eventID, err := arg[string](HelperWaitForEvent, args, 0)
	if err != nil {
		return nil, err
	}
	client, err := fixture.Get[*ayon.Client](h, FixtureServerSession)
	if err != nil {
		return nil, err
	}
	return WaitForEvent(h.Context(), client, eventID, p.pollOptions(0))
}

// wait_for_server_restart()
func (p *Plugin) waitForServerRestartHelper(h fixture.Handle, _ ...any) (any, error) {
	client, err := fixture.Get[*ayon.Client](h, FixtureServerSession)
	if err != nil {
		return nil, err
	}
	if err := WaitForServerRestart(h.Context(), client, p.pollOptions(p.cfg.Wait.RestartDelay)); err != nil {
		return nil, err
	}
	return true, nil
}

// create_representation(params)
func createRepresentationHelper(_ fixture.Handle, args ...any) (any, error) {
	params, err := arg[ayon.RepresentationParams](HelperCreateRepresentation, args, 0)
	if err != nil {
		return nil, err
	}
	return CreateRepresentation(params)
}

// replace_string_in_file(path, old, new)
func replaceStringInFileHelper(_ fixture.Handle, args ...any) (any, error) {
	var s [3]string
	for i := range s {
		v, err := arg[string](HelperReplaceStringInFile, args, i)
		if err != nil {
			return nil, err
		}
		s[i] = v
	}
	return nil, ReplaceStringInFile(s[0], s[1], s[2])
}
