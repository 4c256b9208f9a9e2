package hook

// Well-known hook names. Plugins may subscribe to custom names as well;
// these are the points the platform itself dispatches.
const (
	BeforeTaskExecution      = "before_task_execution"
	AfterTaskExecution       = "after_task_execution"
	BeforeAgentCommunication = "before_agent_communication"
	AfterAgentCommunication  = "after_agent_communication"
	OnError                  = "on_error"
	OnAgentStart             = "on_agent_start"
	OnAgentStop              = "on_agent_stop"
	BeforeDataProcessing     = "before_data_processing"
	AfterDataProcessing      = "after_data_processing"
)

// DefaultPriority is used for subscriptions that do not declare a priority.
// Lower priorities run earlier in the chain.
const DefaultPriority = 50
