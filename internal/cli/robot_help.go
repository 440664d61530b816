package cli

import (
	"fmt"
	"io"
)

func printRobotHelp(w io.Writer) {
	if w == nil {
		return
	}

	// keep: concise; copy-pasteable commands; stable section names
	fmt.Fprint(w, `chatsync Robot Help

Purpose
- mirror a chat host's conversations, follow-ups, AI mode and takeover state
- pushes update immediately; pulls reconcile every few seconds

Quick Start
1) chatsync-host --seed            (development host on the default socket)
2) chatsync chats
3) chatsync use <conversation>
4) chatsync                        (TUI)

Machine output
- chatsync chats --json
- chatsync follow-ups [conversation] --json
- chatsync watch [conversation] --count 1 --no-timeline
  one JSON view per line; fields: connection, conversations, selected,
  timeline, followUpState, followUps, checkIn, ai, intervention, notifications

Config
- --config <file>, --host-addr <socket|host:port>, --log-level <level>
- env: CHATSYNC_HOST_ADDR, CHATSYNC_LOG_LEVEL, ...
`)
}
