package normalize

import "github.com/emiliopalmerini/agentflow/internal/domain"

// Open Code plugin (event bus) event types.
const (
	ocSessionCreated    = "session.created"
	ocSessionIdle       = "session.idle"
	ocSessionDeleted    = "session.deleted"
	ocSessionError      = "session.error"
	ocMessageUser       = "message.user"
	ocMessagePartUpdate = "message.part.updated"
	ocToolBefore        = "tool.execute.before"
	ocToolAfter         = "tool.execute.after"
)

// Open Code `run --format json` line types.
const (
	ocLineToolUse    = "tool_use"
	ocLineTool       = "tool"
	ocLineText       = "text"
	ocLineReasoning  = "reasoning"
	ocLineStepStart  = "step_start"
	ocLineStepFinish = "step_finish"
	ocLineError      = "error"
)

// Message part types and tool part states.
const (
	ocPartText       = "text"
	ocPartReasoning  = "reasoning"
	ocPartTool       = "tool"
	ocPartStepStart  = "step-start"
	ocPartStepFinish = "step-finish"

	ocStatusPending   = "pending"
	ocStatusRunning   = "running"
	ocStatusCompleted = "completed"
	ocStatusError     = "error"
)

// mapOpenCode dispatches on payload shape: plugin events wrap their data in a
// properties object, JSONL lines are flat with a part.
func mapOpenCode(raw map[string]any) mapping {
	if props := firstMap(raw, "properties"); props != nil {
		return mapOpenCodePlugin(raw, props)
	}
	return mapOpenCodeLine(raw)
}

func mapOpenCodePlugin(raw, props map[string]any) mapping {
	tag := rawType(raw, "type", "event")

	switch tag {
	case ocSessionCreated:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionStart,
			meta:     openCodeSessionMeta(props),
		}

	case ocSessionIdle, ocSessionDeleted:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionEnd,
			meta:     domain.Meta{"reason": tag},
		}

	case ocSessionError:
		return mapping{
			category: domain.CategoryError,
			typ:      domain.TypeError,
			err:      orString(errorTextOf(props), errorTextOf(raw)),
		}

	case ocMessageUser:
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageUser,
			role:     ptr(domain.RoleUser),
			text:     orString(firstString(props, "text", "content", "prompt"), digString(props, "message", "text")),
		}

	case ocMessagePartUpdate:
		if part := firstMap(props, "part"); part != nil {
			if m, ok := mapOpenCodePart(part, firstString(props, "role")); ok {
				return m
			}
		}

	case ocToolBefore:
		return mapping{
			category:  domain.CategoryTool,
			typ:       domain.TypeToolStart,
			toolName:  toolNameOf(props),
			toolInput: toolInputOf(props),
			meta:      copyKeys(nil, props, "callID"),
		}

	case ocToolAfter:
		return mapping{
			category:   domain.CategoryTool,
			typ:        domain.TypeToolEnd,
			toolName:   toolNameOf(props),
			toolInput:  toolInputOf(props),
			toolOutput: Truncate(toolOutputOf(props)),
			meta:       copyKeys(nil, props, "callID", "title"),
		}
	}

	return unrecognized(tag, raw)
}

func mapOpenCodeLine(raw map[string]any) mapping {
	tag := rawType(raw, "type", "event")
	part := firstMap(raw, "part")

	switch tag {
	case ocLineToolUse, ocLineTool:
		if part == nil {
			part = raw
		}
		if m, ok := mapOpenCodeToolPart(part); ok {
			return m
		}

	case ocLineText, ocLineReasoning:
		if part != nil {
			if m, ok := mapOpenCodePart(part, firstString(raw, "role")); ok {
				return m
			}
		}

	case ocLineStepStart:
		return mapping{category: domain.CategorySystem, typ: domain.TypeStepStart}

	case ocLineStepFinish:
		return mapping{
			category: domain.CategorySystem,
			typ:      domain.TypeStepFinish,
			meta:     copyKeys(nil, part, "tokens", "cost", "reason"),
		}

	case ocLineError:
		return mapping{
			category: domain.CategoryError,
			typ:      domain.TypeError,
			err:      errorTextOf(raw),
		}

	case "":
		if part != nil {
			if m, ok := mapOpenCodePart(part, firstString(raw, "role")); ok {
				return m
			}
		}
	}

	return unrecognized(tag, raw)
}

func mapOpenCodePart(part map[string]any, role *string) (mapping, bool) {
	switch rawType(part, "type") {
	case ocPartText:
		role = orString(firstString(part, "role"), role)
		if role != nil && *role == string(domain.RoleUser) {
			return mapping{
				category: domain.CategoryMessage,
				typ:      domain.TypeMessageUser,
				role:     ptr(domain.RoleUser),
				text:     firstString(part, "text"),
			}, true
		}
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageAssistant,
			role:     ptr(domain.RoleAssistant),
			text:     firstString(part, "text"),
		}, true

	case ocPartReasoning:
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageReasoning,
			role:     ptr(domain.RoleAssistant),
			text:     firstString(part, "text"),
		}, true

	case ocPartTool:
		return mapOpenCodeToolPart(part)

	case ocPartStepStart:
		return mapping{category: domain.CategorySystem, typ: domain.TypeStepStart}, true

	case ocPartStepFinish:
		return mapping{
			category: domain.CategorySystem,
			typ:      domain.TypeStepFinish,
			meta:     copyKeys(nil, part, "tokens", "cost", "reason"),
		}, true
	}

	return mapping{}, false
}

// mapOpenCodeToolPart branches on the part's state.status: a single tool part
// is a tool.start while pending or running and a tool.end once completed or
// failed. Unknown statuses are not guessed at.
func mapOpenCodeToolPart(part map[string]any) (mapping, bool) {
	state := firstMap(part, "state")
	status := rawType(state, "status")
	if status == "" {
		status = rawType(part, "status")
	}

	m := mapping{
		category:  domain.CategoryTool,
		toolName:  toolNameOf(part),
		toolInput: orAny(first(state, "input"), toolInputOf(part)),
		meta:      copyKeys(domain.Meta{"status": status}, part, "callID"),
	}
	m.meta = copyKeys(m.meta, state, "title")

	switch status {
	case "", ocStatusPending, ocStatusRunning:
		m.typ = domain.TypeToolStart
		if status == "" {
			m.meta["status"] = ocStatusPending
		}
		return m, true

	case ocStatusCompleted:
		m.typ = domain.TypeToolEnd
		m.toolOutput = Truncate(first(state, "output", "result"))
		return m, true

	case ocStatusError:
		m.typ = domain.TypeToolEnd
		m.toolOutput = Truncate(first(state, "error", "output"))
		if e := errorTextOf(state); e != nil {
			m.meta["error"] = *e
		}
		return m, true
	}

	return mapping{}, false
}

func openCodeSessionMeta(props map[string]any) domain.Meta {
	info := firstMap(props, "info", "session")
	if info == nil {
		return nil
	}
	return copyKeys(nil, info, "title", "directory", "version", "parentID")
}

func orAny(candidates ...any) any {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
