// Package interrupt defines the tagged union of host-import traps the
// scheduler dispatches on. A running WASM
// program never returns control to the scheduler normally: every host
// import instead raises an Interrupt, which the scheduler's goroutine
// receives over a channel and acts on before deciding whether, and how,
// to resume the program.
package interrupt

import (
	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
)

// Kind discriminates which Interrupt variant is populated. Go has no sum
// types, so Interrupt carries every variant's fields and Kind says which
// ones are meaningful — mirroring how the scheduler's big match statement
// reads in the original.
type Kind int

const (
	// Common, available from both the coordination script and UTXOs.
	KindCoordinationCode Kind = iota
	KindRegisterEffectHandler
	KindUnregisterEffectHandler
	KindGetRaisedEffectData
	KindResumeThrowingProgram

	// Coordination -> UTXO.
	KindUtxoNew
	KindUtxoResume
	KindUtxoQuery
	KindUtxoMutate
	KindUtxoConsume

	// Coordination <- UTXO.
	KindYield
	KindRaise

	// UTXO -> Token.
	KindTokenBind
	KindTokenUnbind
)

func (k Kind) String() string {
	switch k {
	case KindCoordinationCode:
		return "CoordinationCode"
	case KindRegisterEffectHandler:
		return "RegisterEffectHandler"
	case KindUnregisterEffectHandler:
		return "UnregisterEffectHandler"
	case KindGetRaisedEffectData:
		return "GetRaisedEffectData"
	case KindResumeThrowingProgram:
		return "ResumeThrowingProgram"
	case KindUtxoNew:
		return "UtxoNew"
	case KindUtxoResume:
		return "UtxoResume"
	case KindUtxoQuery:
		return "UtxoQuery"
	case KindUtxoMutate:
		return "UtxoMutate"
	case KindUtxoConsume:
		return "UtxoConsume"
	case KindYield:
		return "Yield"
	case KindRaise:
		return "Raise"
	case KindTokenBind:
		return "TokenBind"
	case KindTokenUnbind:
		return "TokenUnbind"
	default:
		return "Unknown"
	}
}

// Interrupt is the payload a program's goroutine sends to the scheduler
// instead of returning, when a host import needs scheduler-level action.
// Only the fields relevant to Kind are populated; the rest are zero.
type Interrupt struct {
	Kind Kind

	// CoordinationCode
	ReturnAddr uint32

	// RegisterEffectHandler / UnregisterEffectHandler / GetRaisedEffectData /
	// ResumeThrowingProgram / Yield / Raise share Name.
	Name string
	// RegisterEffectHandler
	HandlerAddr uint32
	// GetRaisedEffectData
	OutputPtrData uint32
	NotNull       uint32
	// ResumeThrowingProgram
	InputPtrData uint32

	// UtxoNew / TokenBind
	Code       code.Hash
	EntryPoint string
	Inputs     []uint64

	// UtxoResume / UtxoQuery / UtxoMutate / UtxoConsume
	UtxoID identity.UtxoId
	Method string

	// Yield / Raise
	Data         uint32
	DataLen      uint32
	ResumeArg    uint32
	ResumeArgLen uint32

	// TokenUnbind
	TokenID identity.TokenId
}

// CoordinationCode builds the Interrupt raised by starstream_coordination_code.
func CoordinationCode(returnAddr uint32) Interrupt {
	return Interrupt{Kind: KindCoordinationCode, ReturnAddr: returnAddr}
}

// RegisterEffectHandler builds the Interrupt raised when a program installs
// an effect handler under name at handlerAddr.
func RegisterEffectHandler(name string, handlerAddr uint32) Interrupt {
	return Interrupt{Kind: KindRegisterEffectHandler, Name: name, HandlerAddr: handlerAddr}
}

// UnregisterEffectHandler builds the Interrupt raised when a program removes
// its handler for name.
func UnregisterEffectHandler(name string) Interrupt {
	return Interrupt{Kind: KindUnregisterEffectHandler, Name: name}
}

// GetRaisedEffectData builds the Interrupt a handler raises to read the data
// associated with the effect it is currently handling.
func GetRaisedEffectData(name string, outputPtrData, notNull uint32) Interrupt {
	return Interrupt{Kind: KindGetRaisedEffectData, Name: name, OutputPtrData: outputPtrData, NotNull: notNull}
}

// ResumeThrowingProgram builds the Interrupt a handler raises to resume the
// program that originally called Raise, feeding back inputPtrData.
func ResumeThrowingProgram(name string, inputPtrData uint32) Interrupt {
	return Interrupt{Kind: KindResumeThrowingProgram, Name: name, InputPtrData: inputPtrData}
}

// UtxoNew builds the Interrupt that starts a fresh UTXO program instance.
func UtxoNew(codeHash code.Hash, entryPoint string, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindUtxoNew, Code: codeHash, EntryPoint: entryPoint, Inputs: inputs}
}

// UtxoResume builds the Interrupt that resumes a suspended UTXO at its
// yield point.
func UtxoResume(id identity.UtxoId, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindUtxoResume, UtxoID: id, Inputs: inputs}
}

// UtxoQuery builds the Interrupt for a read-only UTXO method call.
func UtxoQuery(id identity.UtxoId, method string, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindUtxoQuery, UtxoID: id, Method: method, Inputs: inputs}
}

// UtxoMutate builds the Interrupt for a mutating UTXO method call.
func UtxoMutate(id identity.UtxoId, method string, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindUtxoMutate, UtxoID: id, Method: method, Inputs: inputs}
}

// UtxoConsume builds the Interrupt that finalizes and drops a UTXO.
func UtxoConsume(id identity.UtxoId, method string, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindUtxoConsume, UtxoID: id, Method: method, Inputs: inputs}
}

// Yield builds the Interrupt a UTXO raises to suspend itself back to its
// caller, publishing data (dataLen bytes at data) and accepting resumeArg on
// the next resume.
func Yield(name string, data, dataLen, resumeArg, resumeArgLen uint32) Interrupt {
	return Interrupt{
		Kind: KindYield, Name: name,
		Data: data, DataLen: dataLen,
		ResumeArg: resumeArg, ResumeArgLen: resumeArgLen,
	}
}

// Raise builds the Interrupt a UTXO raises to invoke an effect handler.
func Raise(name string, data, dataLen, resumeArg, resumeArgLen uint32) Interrupt {
	return Interrupt{
		Kind: KindRaise, Name: name,
		Data: data, DataLen: dataLen,
		ResumeArg: resumeArg, ResumeArgLen: resumeArgLen,
	}
}

// TokenBind builds the Interrupt that mints and binds a new token into an
// output slot.
func TokenBind(codeHash code.Hash, entryPoint string, inputs []uint64) Interrupt {
	return Interrupt{Kind: KindTokenBind, Code: codeHash, EntryPoint: entryPoint, Inputs: inputs}
}

// TokenUnbind builds the Interrupt that unbinds a previously bound token,
// re-entering its code at an unbind entry point.
func TokenUnbind(id identity.TokenId) Interrupt {
	return Interrupt{Kind: KindTokenUnbind, TokenID: id}
}
