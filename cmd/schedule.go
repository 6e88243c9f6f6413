package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
	"github.com/chrisrogers37/shuffify-sub000/internal/ui"
)

// ScheduleCreate registers a new automation schedule for the active account.
func (r *Runner) ScheduleCreate(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	spec := models.ScheduleSpec{
		JobType:            models.JobType(cmd.String("job-type")),
		TargetPlaylistID:   cmd.String("target"),
		TargetPlaylistName: cmd.String("target-name"),
		SourcePlaylistIDs:  cmd.StringSlice("source"),
		AlgorithmName:      cmd.String("algorithm"),
		AlgorithmParams:    params,
		TriggerType:        models.TriggerType(cmd.String("trigger-type")),
		TriggerValue:       cmd.String("trigger-value"),
	}

	schedule, err := a.store.Create(user.ID(), spec)
	if err != nil {
		return err
	}

	r.logger.Info("schedule created", "id", schedule.ID(), "job_type", schedule.JobType())
	return r.writePlain("%s", ui.RenderSchedule(schedule))
}

// ScheduleList prints the active account's schedules.
func (r *Runner) ScheduleList(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	list, err := a.store.List(user.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		payload := make([]map[string]any, 0, len(list))
		for _, schedule := range list {
			payload = append(payload, scheduleJSON(schedule))
		}
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	return r.writePlain("%s", ui.RenderScheduleList(list))
}

// ScheduleShow prints one schedule in full.
func (r *Runner) ScheduleShow(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	schedule, err := a.store.Get(cmd.StringArg("id"), user.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(scheduleJSON(schedule), cmd.Bool("pretty"))
	}
	return r.writePlain("%s", ui.RenderSchedule(schedule))
}

// ScheduleUpdate applies the provided flags to an existing schedule.
func (r *Runner) ScheduleUpdate(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	fields := map[string]any{}
	for flag, field := range map[string]string{
		"job-type":      "job_type",
		"target":        "target_playlist_id",
		"target-name":   "target_playlist_name",
		"algorithm":     "algorithm_name",
		"trigger-type":  "trigger_type",
		"trigger-value": "trigger_value",
	} {
		if cmd.IsSet(flag) {
			fields[field] = cmd.String(flag)
		}
	}
	if cmd.IsSet("source") {
		fields["source_playlist_ids"] = cmd.StringSlice("source")
	}
	if cmd.IsSet("param") {
		params, err := parseParams(cmd.StringSlice("param"))
		if err != nil {
			return err
		}
		fields["algorithm_params"] = params
	}

	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	schedule, err := a.store.Update(cmd.StringArg("id"), user.ID(), fields)
	if err != nil {
		return err
	}

	r.logger.Info("schedule updated", "id", schedule.ID())
	return r.writePlain("%s", ui.RenderSchedule(schedule))
}

// ScheduleDelete removes a schedule and its execution history.
func (r *Runner) ScheduleDelete(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if err := a.store.Delete(id, user.ID()); err != nil {
		return err
	}

	r.logger.Info("schedule deleted", "id", id)
	return r.writePlain("✓ Schedule %s deleted\n", id)
}

// ScheduleToggle flips a schedule between enabled and disabled.
func (r *Runner) ScheduleToggle(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	schedule, err := a.store.Toggle(cmd.StringArg("id"), user.ID())
	if err != nil {
		return err
	}

	state := "disabled"
	if schedule.Enabled() {
		state = "enabled"
	}
	r.logger.Info("schedule toggled", "id", schedule.ID(), "enabled", schedule.Enabled())
	return r.writePlain("✓ Schedule %s is now %s\n", schedule.ID(), state)
}

// ScheduleHistory prints recent executions of a schedule.
func (r *Runner) ScheduleHistory(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	history, err := a.store.ExecutionHistory(cmd.StringArg("id"), user.ID(), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	return r.writePlain("%s", ui.RenderHistory(history))
}

// ScheduleRun executes a schedule immediately, outside its timer.
func (r *Runner) ScheduleRun(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	id := cmd.StringArg("id")
	r.writePlain("→ Running schedule %s...\n", id)

	result, err := a.executor.ExecuteNow(ctx, id, user.ID())
	if err != nil {
		if result != nil {
			r.writePlain("✗ Execution %s failed: %s\n", result.ExecutionID, result.Error)
		}
		return err
	}

	r.writePlain("✓ Execution %s succeeded\n", result.ExecutionID)
	r.writePlain("  added %d of %d tracks\n", result.TracksAdded, result.TracksTotal)
	return nil
}

// parseParams turns repeated key=value flags into algorithm parameters,
// keeping numeric values numeric.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := map[string]any{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", shared.ErrInvalidArgument, pair)
		}
		if n, err := strconv.Atoi(value); err == nil {
			params[key] = n
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func scheduleJSON(schedule *models.Schedule) map[string]any {
	payload := map[string]any{
		"id":                   schedule.ID(),
		"job_type":             schedule.JobType(),
		"target_playlist_id":   schedule.TargetPlaylistID(),
		"target_playlist_name": schedule.TargetPlaylistName(),
		"source_playlist_ids":  schedule.SourcePlaylistIDs(),
		"algorithm_name":       schedule.AlgorithmName(),
		"algorithm_params":     schedule.AlgorithmParams(),
		"trigger_type":         schedule.TriggerType(),
		"trigger_value":        schedule.TriggerValue(),
		"is_enabled":           schedule.Enabled(),
		"last_run_status":      schedule.LastStatus(),
		"last_error":           schedule.LastError(),
		"created_at":           schedule.CreatedAt().Format(time.RFC3339),
	}
	if at := schedule.LastRunAt(); at != nil {
		payload["last_run_at"] = at.Format(time.RFC3339)
	}
	return payload
}
