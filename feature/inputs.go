package feature

// Input: условие, нужное режиму следования или улучшающее его
type Input uint8

const (
	DroneCalibrated Input = iota
	DroneGPSGoodAccuracy
	TargetGPSGoodAccuracy
	TargetBarometerOK
	DroneFarEnough
	DroneHighEnough
	ImageDetection
	TargetGoodSpeed
	DroneCloseEnough

	inputCount
)

// InputSet: битовое поле выполненных условий, бит на Input
type InputSet uint16

// AllInputs: все условия выполнены
const AllInputs InputSet = 1<<inputCount - 1

func InputsOf(inputs ...Input) InputSet {
	var s InputSet
	for _, in := range inputs {
		s |= 1 << in
	}
	return s
}

// AllInputsExcept: все условия, кроме перечисленных
func AllInputsExcept(inputs ...Input) InputSet {
	return AllInputs &^ InputsOf(inputs...)
}

func (s InputSet) Has(in Input) bool {
	return s&(1<<in) != 0
}

// Missing возвращает невыполненные условия
func (s InputSet) Missing() InputSet {
	return AllInputs &^ s
}

// Inputs перечисляет условия по возрастанию
func (s InputSet) Inputs() []Input {
	var inputs []Input
	for in := Input(0); in < inputCount; in++ {
		if s.Has(in) {
			inputs = append(inputs, in)
		}
	}
	return inputs
}
