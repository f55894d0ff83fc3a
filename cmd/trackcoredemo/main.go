// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// trackcoredemo replays a CSV-recorded stream of armor-plate pose
// observations through one of the tracking-queue variants and prints
// the predicted pose and fire decision for each frame.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	tc "github.com/openrm-go/trackcore"
)

func main() {
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	if err := runApplication(args); err != nil {
		tc.PrintE(err)
		os.Exit(1)
	}
}

type cmdOpt struct {
	inFn    string
	outFn   string
	variant string
	delay   float64
	slots   int
}

func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: trackcoredemo [flags] <observations.csv>\n")
		fmt.Fprintf(os.Stderr, "  observations.csv columns: t,x,y,z,yaw (seconds since epoch start, metres, radians)\n")
		flag.PrintDefaults()
	}

	flag.StringVar(&a.outFn, "o", "", "Output file path. If not specified, output to stdout.")
	flag.StringVar(&a.variant, "variant", "v1", "Tracking queue variant to run: v1, v2, v3, v4")
	flag.Float64Var(&a.delay, "delay", 0.1, "Prediction lookahead in seconds passed to get_pose")
	flag.IntVar(&a.slots, "slots", 4, "Number of tracking-queue slots to allocate")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display level. 0(off), 1(on)")
	flag.Parse()

	tc.DBG_ = dbg

	if flag.NArg() != 1 {
		return a, fmt.Errorf("expected exactly one observations CSV path, got %d", flag.NArg())
	}
	a.inFn = flag.Arg(0)
	return a, nil
}

func runApplication(args cmdOpt) error {
	frames, err := readFrames(args.inFn)
	if err != nil {
		return fmt.Errorf("failed to read observations: %w", err)
	}

	out, err := prepareOutput(args.outFn)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer out.Close()

	runner, err := newRunner(args.variant, args.slots)
	if err != nil {
		return err
	}

	base := tc.Now()
	fmt.Fprintf(out, "# t x y z yaw fire_valid pred_x pred_y pred_z pred_yaw\n")
	for i, fr := range frames {
		t := base.AddSeconds(fr.t)
		runner.push(fr.pose, t)
		if i+1 < len(frames) && frames[i+1].t == fr.t {
			continue // more observations of this frame follow
		}
		runner.update(t)

		pred := runner.getPose(args.delay)
		fmt.Fprintf(out, "%.3f %.4f %.4f %.4f %.4f %v %.4f %.4f %.4f %.4f\n",
			fr.t, fr.pose.X, fr.pose.Y, fr.pose.Z, fr.pose.Yaw,
			runner.fireValid(fr.pose),
			pred.X, pred.Y, pred.Z, pred.Yaw)

		if tc.DBG_ >= 1 {
			for _, line := range runner.stateStr() {
				tc.PrintD(1, "%s\n", line)
			}
		}
	}
	return nil
}

type frame struct {
	t    float64
	pose tc.Pose
}

func readFrames(fn string) ([]frame, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.TrimLeadingSpace = true

	var frames []frame
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || rec[0] == "" || rec[0][0] == '#' {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("expected 5 columns (t,x,y,z,yaw), got %d", len(rec))
		}
		vals := make([]float64, 5)
		for i, s := range rec[:5] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %d: %w", i, err)
			}
			vals[i] = v
		}
		frames = append(frames, frame{
			t:    vals[0],
			pose: tc.NewPose(vals[1], vals[2], vals[3], vals[4]),
		})
	}
	return frames, nil
}

func prepareOutput(fn string) (io.WriteCloser, error) {
	if fn == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(fn)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// runner wraps whichever tracking-queue variant was selected behind a
// uniform interface so the replay loop above does not need a type
// switch per frame.
type runner interface {
	push(pose tc.Pose, t tc.Instant)
	update(now tc.Instant)
	getPose(delay float64) tc.Pose
	fireValid(pose tc.Pose) bool
	stateStr() []string
}

func newRunner(variant string, slots int) (runner, error) {
	switch variant {
	case "v1":
		return &runnerV1{q: tc.NewTrackQueueV1(slots, tc.DefaultTrackQueueV1Config())}, nil
	case "v2":
		return &runnerV2{q: tc.NewTrackQueueV2(slots, tc.DefaultTrackQueueV2Config())}, nil
	case "v3":
		return &runnerV3{q: tc.NewTrackQueueV3(slots, tc.DefaultTrackQueueV3Config())}, nil
	case "v4":
		return &runnerV4{q: tc.NewTrackQueueV4(slots, tc.DefaultTrackQueueV4Config())}, nil
	default:
		return nil, fmt.Errorf("unknown variant %q: expected v1, v2, v3 or v4", variant)
	}
}

type runnerV1 struct{ q *tc.TrackQueueV1 }

func (r *runnerV1) push(pose tc.Pose, t tc.Instant) { r.q.Push(pose, t) }
func (r *runnerV1) update(now tc.Instant)           { r.q.Update(now) }
func (r *runnerV1) getPose(delay float64) tc.Pose   { return r.q.GetPose(delay) }
func (r *runnerV1) fireValid(pose tc.Pose) bool     { return r.q.IsFireValid(pose) }
func (r *runnerV1) stateStr() []string              { return r.q.GetStateStr() }

type runnerV2 struct{ q *tc.TrackQueueV2 }

func (r *runnerV2) push(pose tc.Pose, t tc.Instant) { r.q.Push(pose, t) }
func (r *runnerV2) update(now tc.Instant)           { r.q.Update(now) }
func (r *runnerV2) getPose(delay float64) tc.Pose   { return r.q.GetPose(delay) }
func (r *runnerV2) fireValid(pose tc.Pose) bool     { return r.q.IsFireValid(pose) }
func (r *runnerV2) stateStr() []string              { return r.q.GetStateStr() }

type runnerV3 struct {
	q *tc.TrackQueueV3
	h tc.SlotHandle
}

func (r *runnerV3) push(pose tc.Pose, t tc.Instant) { r.h = r.q.Push(pose, t) }
func (r *runnerV3) update(now tc.Instant)           { r.q.Update(now) }
func (r *runnerV3) getPose(delay float64) tc.Pose   { return r.q.GetPose(r.h, delay) }
func (r *runnerV3) fireValid(tc.Pose) bool          { return r.q.GetFireFlag(r.h) }
func (r *runnerV3) stateStr() []string              { return r.q.GetStateStr() }

type runnerV4 struct{ q *tc.TrackQueueV4 }

func (r *runnerV4) push(pose tc.Pose, t tc.Instant) { r.q.Push(pose, t) }
func (r *runnerV4) update(now tc.Instant)           { r.q.Update(now) }
func (r *runnerV4) getPose(delay float64) tc.Pose   { return r.q.GetPose(delay) }
func (r *runnerV4) fireValid(tc.Pose) bool          { return r.q.GetFireFlag() }
func (r *runnerV4) stateStr() []string              { return r.q.GetStateStr() }
