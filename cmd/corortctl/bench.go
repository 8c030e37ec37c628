package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-corort"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run small throughput benchmarks against a scheduler",
	}
	cmd.AddCommand(newBenchChannelCmd())
	return cmd
}

func newBenchChannelCmd() *cobra.Command {
	var (
		messages int
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Measure round-trip throughput of a bounded channel between two tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, sched := corort.NewScheduler()
			go sched.Run(cmd.Context())
			defer lc.Drop(context.Background())

			ch := corort.NewBoundedChannel[int](corort.LockSpin, capacity)

			start := time.Now()
			sendTask, err := corort.Join(sched, sendLoop(ch, messages))
			if err != nil {
				return err
			}
			recvTask, err := corort.Join(sched, recvLoop(ch, messages))
			if err != nil {
				return err
			}

			if _, err := corort.AwaitResult[struct{}](sendTask); err != nil {
				return err
			}
			if _, err := corort.AwaitResult[int](recvTask); err != nil {
				return err
			}

			elapsed := time.Since(start)
			fmt.Printf("%d messages in %s (%.0f msg/s)\n", messages, elapsed, float64(messages)/elapsed.Seconds())
			return nil
		},
	}
	cmd.Flags().IntVar(&messages, "messages", 100000, "number of messages to send")
	cmd.Flags().IntVar(&capacity, "capacity", 64, "bounded channel capacity")
	return cmd
}

func sendLoop(ch *corort.Channel[int], n int) corort.Task[struct{}] {
	var loop func(i int) corort.Task[struct{}]
	loop = func(i int) corort.Task[struct{}] {
		if i >= n {
			return corort.Value(struct{}{})
		}
		return corort.Then(ch.Send(i), func(sendErr error, taskErr error) corort.Task[struct{}] {
			if sendErr != nil || taskErr != nil {
				return corort.Value(struct{}{})
			}
			return loop(i + 1)
		})
	}
	return loop(0)
}

func recvLoop(ch *corort.Channel[int], n int) corort.Task[int] {
	var loop func(count int) corort.Task[int]
	loop = func(count int) corort.Task[int] {
		if count >= n {
			return corort.Value(count)
		}
		return corort.Then(ch.Recv(), func(r corort.RecvResult[int], err error) corort.Task[int] {
			if err != nil || !r.Ok {
				return corort.Value(count)
			}
			return loop(count + 1)
		})
	}
	return loop(0)
}
