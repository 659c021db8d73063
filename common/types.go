package common

import "pilot-bridge/feature"

// Transport отправляет команды устройству.
// false означает, что команду не удалось поставить в очередь; вызывающий
// считает ее потерянной.
type Transport interface {
	// SendCommand отправляет команду по каналу с подтверждением
	SendCommand(cmd feature.Command) bool
	// SendNoAckCommand отправляет команду, которую заменит следующая
	SendNoAckCommand(cmd feature.Command) bool
}

// DeviceHandler получает от транспорта состояние связи и события
type DeviceHandler interface {
	// LinkUp вызывается, когда связь с устройством установлена
	LinkUp()
	// LinkDown вызывается при потере связи
	LinkDown()
	// HandleEvent вызывается для каждого события в порядке получения
	HandleEvent(ev feature.Event)
}
