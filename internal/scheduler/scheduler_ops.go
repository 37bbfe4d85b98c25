package scheduler

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/interrupt"
	"github.com/PaimaStudios/starstream/internal/linker"
	"github.com/PaimaStudios/starstream/internal/program"
	"github.com/PaimaStudios/starstream/internal/witness"
)

func readGuestMemory(mod api.Module, addr, length uint32) []byte {
	buf, ok := mod.Memory().Read(addr, length)
	if !ok {
		panic(fmt.Sprintf("scheduler: out-of-bounds memory read at %#x len %d", addr, length))
	}
	out := make([]byte, length)
	copy(out, buf)
	return out
}

func writeGuestMemory(mod api.Module, addr uint32, data []byte) {
	if !mod.Memory().Write(addr, data) {
		panic(fmt.Sprintf("scheduler: out-of-bounds memory write at %#x len %d", addr, len(data)))
	}
}

// runExport spawns the goroutine that drives one program call (either a
// brand-new instantiation's entry point, or a call_method-style call into a
// different export on an already-live instance), and blocks until it either
// parks at the next host-import trap or returns for good. At most one such
// goroutine is ever unblocked at a time, since the caller never proceeds
// until this returns.
func (tx *Transaction) runExport(idx program.Idx, mod api.Module, thisCode code.Hash, export string, inputs []uint64) callOutcome {
	ch := &programChannels{
		interrupts: make(chan interrupt.Interrupt),
		resume:     make(chan []uint64),
		done:       make(chan callOutcome, 1),
	}
	tx.channels[idx] = ch

	sess := &linker.Session{
		ThisCode:   thisCode,
		Interrupts: ch.interrupts,
		Resume:     ch.resume,
		Identities: tx.identities,
	}
	callCtx := linker.WithSession(tx.ctx, sess)

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return callOutcome{err: fmt.Errorf("scheduler: %s has no export %q", thisCode, export)}
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok && errors.Is(err, linker.ErrAbort) {
					ch.done <- callOutcome{err: fmt.Errorf("program %s: %w", idx, err)}
					return
				}
				ch.done <- callOutcome{err: fmt.Errorf("program %s: panic: %v", idx, r)}
			}
		}()
		results, err := fn.Call(callCtx, inputs...)
		if err != nil {
			ch.done <- callOutcome{err: fmt.Errorf("program %s: %w", idx, err)}
			return
		}
		ch.done <- callOutcome{finished: true, values: results}
	}()

	return tx.awaitOutcome(idx, ch)
}

// awaitOutcome blocks for whichever happens first on idx's call: a new
// Interrupt (the program parks, state becomes Suspended) or the underlying
// Call returning (the program finishes for good).
func (tx *Transaction) awaitOutcome(idx program.Idx, ch *programChannels) callOutcome {
	select {
	case in := <-ch.interrupts:
		p := tx.programs.Get(idx)
		p.State = program.Suspended
		p.PendingInterrupt = in
		tx.fuel++
		return callOutcome{}
	case out := <-ch.done:
		p := tx.programs.Get(idx)
		p.State = program.Finished
		p.Outputs = out.values
		tx.metrics.ProgramFinished()
		return out
	}
}

// startProgram instantiates coordinationCode fresh, under dialect's import
// set, and begins running entryPoint — the Go counterpart of the original's
// start_program: it always creates both a new wazero module instance and a
// new Program table row. kind/utxoID classify the resulting witness entry
// for internal/ledger (witness.KindOther/identity.UtxoId{} when this start
// has no UTXO-lifecycle significance, e.g. the coordination script itself
// or a token bind/unbind).
func (tx *Transaction) startProgram(returnTo program.Idx, cc *code.ContractCode, dialect linker.Dialect, entryPoint string, inputs []uint64, kind witness.Kind, utxoID identity.UtxoId) (program.Idx, callOutcome, error) {
	if err := tx.ensureUtxoEnv(); err != nil {
		return 0, callOutcome{}, err
	}

	cm, err := tx.cache.CompiledModule(tx.ctx, tx.rt, cc)
	if err != nil {
		return 0, callOutcome{}, err
	}
	if err := linker.BuildDialectImports(tx.ctx, tx.rt, cm, dialect, tx.fixtures, tx.linkedModules); err != nil {
		return 0, callOutcome{}, err
	}

	name := fmt.Sprintf("instance-%d", tx.programs.Len())
	mod, err := tx.rt.InstantiateModule(tx.ctx, cm, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return 0, callOutcome{}, fmt.Errorf("scheduler: instantiate %s at %s: %w", cc.Hash(), entryPoint, err)
	}

	idx := tx.programs.Append(program.Program{
		ReturnTo:   returnTo,
		Code:       cc.Hash(),
		EntryPoint: entryPoint,
		State:      program.NotStarted,
		Instance:   mod,
	})
	tx.metrics.ProgramStarted()

	tx.recordWitness(returnTo, idx, inputs, nil, nil, kind, utxoID)
	outcome := tx.runExport(idx, mod, cc.Hash(), entryPoint, inputs)
	return idx, outcome, outcome.err
}

// callMethod dispatches to a different exported function on an already-live
// instance — UtxoQuery/UtxoMutate/UtxoConsume and an effect handler
// invocation all work this way in the original: the target instance is
// reused, but the call gets its own fresh Program table row rather than
// continuing whatever row first instantiated that module, because the
// instance can field many independent method-call episodes over its life.
// Query/Mutate/Consume method calls carry no ledger Resume/Yield op of
// their own (they are call_method side calls, not the resumable yield
// cycle), so callMethod always records witness.KindOther.
//
// captureLen is nonzero only for a UtxoMutate call (handleUtxoMethod is the
// only caller that ever sets it): the object's memory region at
// captureAddr is read before and after the export runs, and both snapshots
// land on the witness entry as ReadFromMemory (prior state) and
// WriteToMemory (state the mutate left behind). A UtxoQuery or
// UtxoConsume call passes captureLen zero and records neither, per
// internal/witness's documented Mutate-only capture.
func (tx *Transaction) callMethod(targetIdx, returnTo program.Idx, export string, inputs []uint64, captureAddr, captureLen uint32) (program.Idx, callOutcome, error) {
	target := tx.programs.Get(targetIdx)
	mod := target.Instance
	if mod == nil {
		return 0, callOutcome{}, fmt.Errorf("scheduler: program %s has no live instance to call %q on", targetIdx, export)
	}

	idx := tx.programs.Append(program.Program{
		ReturnTo:   returnTo,
		Code:       target.Code,
		EntryPoint: export,
		State:      program.NotStarted,
		Instance:   mod,
		Utxo:       target.Utxo,
	})
	tx.metrics.ProgramStarted()

	if captureLen == 0 {
		tx.recordWitness(returnTo, idx, inputs, nil, nil, witness.KindOther, identity.UtxoId{})
		outcome := tx.runExport(idx, mod, target.Code, export, inputs)
		return idx, outcome, outcome.err
	}

	// A mutate's prior-state snapshot has to be taken before the export
	// runs, so the witness entry for a capturing call is only appended
	// once the call has returned and the post-state is also in hand —
	// unlike every other control transfer in this package, which appends
	// before running.
	read := []witness.MemorySegment{{Address: captureAddr, Data: readGuestMemory(mod, captureAddr, captureLen)}}
	outcome := tx.runExport(idx, mod, target.Code, export, inputs)

	var write []witness.MemorySegment
	if outcome.err == nil {
		write = []witness.MemorySegment{{Address: captureAddr, Data: readGuestMemory(mod, captureAddr, captureLen)}}
	}
	tx.recordWitness(returnTo, idx, inputs, read, write, witness.KindOther, identity.UtxoId{})

	return idx, outcome, outcome.err
}

// resumeProgram continues targetIdx's own in-flight resumable call — the Go
// counterpart of the original's resume(): the row is reused, not replaced.
func (tx *Transaction) resumeProgram(targetIdx, fromProgram program.Idx, values []uint64, kind witness.Kind, utxoID identity.UtxoId) (program.Idx, callOutcome, error) {
	return tx.doResume(targetIdx, fromProgram, values, nil, nil, kind, utxoID)
}

// doResume is resumeProgram plus an optional batch of guest-memory writes to
// apply to targetIdx's instance before resuming it and reads already taken
// from the suspending program's memory to record in the witness entry —
// together covering every control transfer the original's resume() makes,
// whether it hands data in (UtxoResume), out (Yield), or neither.
func (tx *Transaction) doResume(targetIdx, fromProgram program.Idx, values []uint64, write, read []witness.MemorySegment, kind witness.Kind, utxoID identity.UtxoId) (program.Idx, callOutcome, error) {
	ch, ok := tx.channels[targetIdx]
	if !ok {
		return 0, callOutcome{}, fmt.Errorf("scheduler: resume of program %s with no pending call", targetIdx)
	}

	p := tx.programs.Get(targetIdx)
	if p.State != program.Suspended {
		return 0, callOutcome{}, fmt.Errorf("scheduler: program %s is not suspended", targetIdx)
	}
	for _, seg := range write {
		writeGuestMemory(p.Instance, seg.Address, seg.Data)
	}

	tx.witnesses.Append(witness.Entry{
		Fuel:           tx.fuel,
		FromProgram:    fromProgram,
		ToProgram:      targetIdx,
		Values:         values,
		ReadFromMemory: read,
		WriteToMemory:  write,
		Kind:           kind,
		UtxoId:         utxoID,
	})
	tx.absorbCommitment(targetIdx, values, read, write)
	ch.resume <- values
	outcome := tx.awaitOutcome(targetIdx, ch)
	return targetIdx, outcome, outcome.err
}

// handleReturn is reached when fromProgram's call has fully finished and
// control passes back to toProgram (fromProgram.ReturnTo). It resolves two
// things the generic resume path can't: an effect handler's finish must
// deliver the queued resume_throwing_program payload to the original
// raiser instead of its own return values, and a token-mint call's finish
// must capture its struct return and mint a TokenId before anything resumes.
func (tx *Transaction) handleReturn(fromProgram, toProgram program.Idx, values []uint64) (program.Idx, callOutcome, error) {
	if pr, ok := tx.throwResumes[fromProgram]; ok {
		delete(tx.throwResumes, fromProgram)
		return tx.doResume(pr.target, fromProgram, nil, pr.write, nil, witness.KindOther, identity.UtxoId{})
	}

	from := tx.programs.Get(fromProgram)
	if from.ReturnIsToken {
		id, amount := readTokenStruct(from.Instance)
		tokenID := identity.NewTokenId()

		owner := tx.programs.Get(toProgram).Utxo
		if owner == nil {
			return 0, callOutcome{}, fmt.Errorf("scheduler: token mint return to program %s which backs no UTXO", toProgram)
		}
		rec := tx.utxos[*owner]
		rec.tokens[tokenID] = tokenRecord{bindProgram: fromProgram, kind: id, amount: amount}

		scrambled := tx.identities.ScrambleToken(tokenID)
		return tx.doResume(toProgram, fromProgram, []uint64{uint64(scrambled)}, nil, nil, witness.KindOther, identity.UtxoId{})
	}

	// A UTXO's own entry-point program returning for good (rather than
	// yielding) retires it, the degenerate case of DropUtxo the UTXO
	// lifecycle allows for alongside the explicit UtxoConsume path
	// in handleUtxoMethod. A Query/Mutate/Consume method-call row also
	// carries the same Utxo pointer (set by callMethod for bookkeeping), so
	// this only fires for the row that is actually the UTXO's tracked
	// entry-point call, never for a side-call method return.
	if from.Utxo != nil {
		if rec, ok := tx.utxos[*from.Utxo]; ok && rec.program == fromProgram {
			delete(tx.utxos, *from.Utxo)
			return tx.doResume(toProgram, fromProgram, values, nil, nil, witness.KindDropUtxo, *from.Utxo)
		}
	}

	return tx.doResume(toProgram, fromProgram, values, nil, nil, witness.KindOther, identity.UtxoId{})
}

func readTokenStruct(mod api.Module) (id, amount uint64) {
	raw := readGuestMemory(mod, tokenBindReturnAddr, tokenStructSize)
	return binary.LittleEndian.Uint64(raw[0:8]), binary.LittleEndian.Uint64(raw[8:16])
}

// handleGetRaisedEffectData answers a handler's request to read the data
// the raiser passed to starstream_raise: notNull is set to 1 and the bytes
// copied into the handler's own memory at outputPtrData when a raise for
// in.Name is in flight, or 0 (and nothing copied) otherwise.
func (tx *Transaction) handleGetRaisedEffectData(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	re, ok := tx.raised[in.Name]

	var write []witness.MemorySegment
	if ok {
		raiser := tx.programs.Get(re.from).Instance
		data := readGuestMemory(raiser, re.dataAddr, re.dataLen)
		write = append(write, witness.MemorySegment{Address: in.OutputPtrData, Data: data})
		write = append(write, witness.MemorySegment{Address: in.NotNull, Data: []byte{1}})
	} else {
		write = append(write, witness.MemorySegment{Address: in.NotNull, Data: []byte{0}})
	}

	return tx.doResume(fromProgram, fromProgram, nil, write, nil, witness.KindOther, identity.UtxoId{})
}

// handleResumeThrowingProgram is raised by a handler once it has decided
// how to resolve the effect it is handling. The resume payload is staged
// under fromProgram (the handler) rather than delivered immediately,
// because the handler keeps running after this call returns — the payload
// is only handed to the original raiser once the handler's own call
// finishes, in handleReturn.
func (tx *Transaction) handleResumeThrowingProgram(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	re, ok := tx.raised[in.Name]
	if !ok {
		return 0, callOutcome{}, fmt.Errorf("scheduler: resume_throwing_program: %w: name=%q", errNoRaiseInFlight, in.Name)
	}
	delete(tx.raised, in.Name)
	if _, err := tx.handlers.ResumeThrowing(in.Name); err != nil {
		return 0, callOutcome{}, err
	}

	handler := tx.programs.Get(fromProgram).Instance
	data := readGuestMemory(handler, in.InputPtrData, re.resumeArgLen)

	tx.throwResumes[fromProgram] = pendingThrowResume{
		target: re.from,
		write:  []witness.MemorySegment{{Address: re.resumeAddr, Data: data}},
	}

	return tx.resumeProgram(fromProgram, fromProgram, nil, witness.KindOther, identity.UtxoId{})
}

var errNoRaiseInFlight = errors.New("no raise in flight under this name")

// handleCoordinationCode answers starstream_coordination_code: the
// transaction's top-level script hash, written into the calling program's
// own memory at in.ReturnAddr, available to any program regardless of
// dialect.
func (tx *Transaction) handleCoordinationCode(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	write := []witness.MemorySegment{{Address: in.ReturnAddr, Data: tx.coordinationCode[:]}}
	return tx.doResume(fromProgram, fromProgram, nil, write, nil, witness.KindOther, identity.UtxoId{})
}

// handleUtxoNew starts a brand-new UTXO program instance: a fresh UtxoId is
// minted up front (so the caller's scrambled/handle alias is available even
// though the UTXO's entry point has not run its first yield yet), and
// YieldTo records that the UTXO's later yields hand control back to the
// program that created it. Once the UTXO first suspends, the creator is
// resumed directly with the UTXO's scrambled id; YieldToConstructor is not
// set.
func (tx *Transaction) handleUtxoNew(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	cc, err := tx.cache.Get(in.Code)
	if err != nil {
		return 0, callOutcome{}, err
	}

	// Minted before startProgram so the entering witness entry can carry
	// this UTXO's id for the ledger-op builder — the circuit's Resume
	// semantics treat a brand-new UTXO's first entry the same as any later
	// UtxoResume, with output_before implicitly zero.
	utxoID := identity.NewUtxoId()
	idx, outcome, err := tx.startProgram(fromProgram, cc, linker.DialectUtxo, in.EntryPoint, in.Inputs, witness.KindResume, utxoID)
	if err != nil {
		return idx, outcome, err
	}

	p := tx.programs.Get(idx)
	p.Utxo = &utxoID
	p.YieldTo = &fromProgram
	tx.utxos[utxoID] = &utxoRecord{program: idx, tokens: make(map[identity.TokenId]tokenRecord)}

	if outcome.finished {
		return idx, outcome, nil
	}

	scrambled := tx.identities.ScrambleUtxo(utxoID)
	return tx.resumeProgram(fromProgram, idx, []uint64{uint64(scrambled)}, witness.KindOther, identity.UtxoId{})
}

// handleUtxoResume continues a suspended UTXO's own in-flight call with new
// inputs — a plain resume, since it targets the same Program row the UTXO
// has held since handleUtxoNew.
//
// starstream_yield is declared with no result values: a resumed UTXO
// receives its new data purely through guest memory, at the resume_arg
// address it published in its own Yield interrupt, not as a return value.
// The caller's starstream_resume_* import carries that data as a pointer
// into its own memory (in.Inputs[1], right after the UTXO handle in
// in.Inputs[0]), so it has to be read out of the caller here and staged as
// a MemorySegment for doResume to write into the callee before resuming it,
// mirroring the original's "write_to_memory = vec![MemorySegment{address:
// resume_arg, data: caller_memory_data}]".
func (tx *Transaction) handleUtxoResume(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	rec, ok := tx.utxos[in.UtxoID]
	if !ok {
		return 0, callOutcome{}, fmt.Errorf("scheduler: resume of unknown UTXO %s", in.UtxoID)
	}

	p := tx.programs.Get(rec.program)
	if p.State != program.Suspended || p.PendingInterrupt.Kind != interrupt.KindYield {
		return 0, callOutcome{}, fmt.Errorf("scheduler: cannot resume UTXO %s: not suspended at a yield", in.UtxoID)
	}
	if len(in.Inputs) < 2 {
		return 0, callOutcome{}, fmt.Errorf("scheduler: resume of UTXO %s: missing caller memory pointer", in.UtxoID)
	}
	resumeArg, resumeArgLen := p.PendingInterrupt.ResumeArg, p.PendingInterrupt.ResumeArgLen
	copyFrom := uint32(in.Inputs[1])

	caller := tx.programs.Get(fromProgram)
	data := readGuestMemory(caller.Instance, copyFrom, resumeArgLen)
	write := []witness.MemorySegment{{Address: resumeArg, Data: data}}

	p.YieldTo = &fromProgram
	return tx.doResume(rec.program, fromProgram, nil, write, nil, witness.KindResume, in.UtxoID)
}

// handleUtxoMethod dispatches UtxoQuery/UtxoMutate/UtxoConsume: all three
// call a different exported function (in.Method) on the UTXO's already-live
// instance via callMethod, rather than continuing its suspended entry-point
// call. UtxoConsume additionally marks the UTXO's original Program row
// Finished first, since a consumed UTXO's coroutine never runs again.
//
// The UTXO's own entry-point coroutine is parked mid-yield the whole time
// its methods are being called, so its Program row's PendingInterrupt is
// still the Yield it last raised — carrying, in .Data, the address (inside
// its own memory) of the object the method operates on. The target method
// export expects that address as its first argument, so it is prepended to
// in.Inputs here, mirroring the original's
// "inputs.insert(0, Value::I32(address as i32))".
func (tx *Transaction) handleUtxoMethod(fromProgram program.Idx, in interrupt.Interrupt, consume bool) (program.Idx, callOutcome, error) {
	rec, ok := tx.utxos[in.UtxoID]
	if !ok {
		return 0, callOutcome{}, fmt.Errorf("scheduler: method call on unknown UTXO %s", in.UtxoID)
	}

	target := tx.programs.Get(rec.program)
	if target.State != program.Suspended || target.PendingInterrupt.Kind != interrupt.KindYield {
		return 0, callOutcome{}, fmt.Errorf("scheduler: cannot call method on UTXO %s: not suspended at a yield", in.UtxoID)
	}
	address := target.PendingInterrupt.Data
	inputs := append([]uint64{uint64(address)}, in.Inputs...)

	if consume {
		target.State = program.Finished
		tx.metrics.ProgramFinished()
	}

	var captureAddr, captureLen uint32
	if in.Kind == interrupt.KindUtxoMutate {
		captureAddr, captureLen = address, target.PendingInterrupt.DataLen
	}

	idx, outcome, err := tx.callMethod(rec.program, fromProgram, in.Method, inputs, captureAddr, captureLen)
	if consume && err == nil {
		// A Consume call's target row is marked Finished directly above
		// rather than running to completion through its own goroutine's
		// return, so handleReturn's natural DropUtxo detection (which keys
		// off a Program row actually finishing) never sees this retirement.
		// Recorded here instead, once the consume call itself has
		// succeeded, so the ledger-op builder still sees exactly one
		// DropUtxo per retired UTXO.
		delete(tx.utxos, in.UtxoID)
		tx.recordWitness(fromProgram, idx, nil, nil, nil, witness.KindDropUtxo, in.UtxoID)
	}

	return idx, outcome, err
}

// handleYield is raised by a UTXO to suspend itself and return control (and
// its yielded data) to whoever last resumed it — recorded on the Program
// row as YieldTo by handleUtxoNew/handleUtxoResume, since a UTXO's caller
// can change across suspend/resume cycles.
func (tx *Transaction) handleYield(fromProgram program.Idx) (program.Idx, callOutcome, error) {
	p := tx.programs.Get(fromProgram)
	if p.YieldTo == nil {
		return 0, callOutcome{}, fmt.Errorf("scheduler: program %s yielded with no caller to return to", fromProgram)
	}
	caller := *p.YieldTo
	in := p.PendingInterrupt
	selfMod := p.Instance

	read := []witness.MemorySegment{{Address: in.Data, Data: readGuestMemory(selfMod, in.Data, in.DataLen)}}
	return tx.doResume(caller, fromProgram, nil, nil, read, witness.KindYield, *p.Utxo)
}

// handleRaise dispatches a Raise interrupt to the innermost registered
// handler for in.Name, starting a fresh callMethod episode against the
// handler owner's instance at "<name>_handle" and recording the raise so
// GetRaisedEffectData/ResumeThrowingProgram can find it later.
func (tx *Transaction) handleRaise(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	owner, _, ok := tx.handlers.Handler(in.Name)
	if !ok {
		return 0, callOutcome{}, fmt.Errorf("scheduler: raise %q: %w", in.Name, errNoHandlerRegistered)
	}
	if err := tx.handlers.Raise(in.Name, fromProgram); err != nil {
		return 0, callOutcome{}, err
	}

	tx.raised[in.Name] = raisedEffect{
		from:         fromProgram,
		dataAddr:     in.Data,
		dataLen:      in.DataLen,
		resumeAddr:   in.ResumeArg,
		resumeArgLen: in.ResumeArgLen,
	}

	return tx.callMethod(owner, fromProgram, in.Name+"_handle", nil, 0, 0)
}

var errNoHandlerRegistered = errors.New("no handler registered")

// handleTokenBind starts a fresh token-mint program instance, the one case
// where a program's ReturnTo is marked ReturnIsToken so handleReturn knows
// to capture its (id, amount) struct return instead of treating the call's
// normal outputs as the resume value.
func (tx *Transaction) handleTokenBind(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	cc, err := tx.cache.Get(in.Code)
	if err != nil {
		return 0, callOutcome{}, err
	}

	idx, outcome, err := tx.startProgram(fromProgram, cc, linker.DialectToken, in.EntryPoint, in.Inputs, witness.KindOther, identity.UtxoId{})
	if err != nil {
		return idx, outcome, err
	}
	// Marked after startProgram returns so handleReturn (invoked generically
	// by Run's main loop once this program finishes) knows to capture its
	// struct return instead of passing its raw outputs straight through.
	tx.programs.Get(idx).ReturnIsToken = true

	return idx, outcome, nil
}

// handleTokenUnbind looks up the token's owning UTXO and issuing bind call,
// then re-enters the same code at its matching unbind entry point (the
// original derives this by replacing the "bind" segment of the entry point
// name with "unbind") with the token's (kind, amount) as i64 inputs.
func (tx *Transaction) handleTokenUnbind(fromProgram program.Idx, in interrupt.Interrupt) (program.Idx, callOutcome, error) {
	var rec tokenRecord
	var found bool
	for _, u := range tx.utxos {
		if tr, ok := u.tokens[in.TokenID]; ok {
			rec = tr
			found = true
			delete(u.tokens, in.TokenID)
			break
		}
	}
	if !found {
		return 0, callOutcome{}, fmt.Errorf("scheduler: unbind of unknown token %s", in.TokenID)
	}

	bindProgram := tx.programs.Get(rec.bindProgram)
	unbindEntry := unbindEntryPoint(bindProgram.EntryPoint)

	cc, err := tx.cache.Get(bindProgram.Code)
	if err != nil {
		return 0, callOutcome{}, err
	}

	return tx.startProgram(fromProgram, cc, linker.DialectToken, unbindEntry, []uint64{rec.kind, rec.amount}, witness.KindOther, identity.UtxoId{})
}

// unbindEntryPoint derives a token's unbind entry point from its bind entry
// point by substituting the first occurrence of "bind" with "unbind",
// mirroring the original's entry_point.replace("bind", "unbind").
func unbindEntryPoint(bindEntry string) string {
	const from, to = "bind", "unbind"
	i := indexOf(bindEntry, from)
	if i < 0 {
		return bindEntry
	}
	return bindEntry[:i] + to + bindEntry[i+len(from):]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
