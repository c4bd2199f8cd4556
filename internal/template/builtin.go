package template

// Builtins returns the stock two-role setups available without any
// template file.
func Builtins() []Template {
	return []Template{
		{
			Name:        "Interviewer | Interviewee",
			Description: "Interviewer asks questions to interviewee during a job interview.",
			Roles:       []string{"Interviewer", "Interviewee"},
			Start:       "Tell me about your experience working in a fast-paced environment.",
			SystemMessages: map[string]string{
				"Interviewer": "You are an interviewer assessing the candidate's skills and experience.",
				"Interviewee": "You are a candidate explaining your experience and qualifications.",
			},
		},
		{
			Name:        "Employee | Manager",
			Description: "Employee asks manager for advice on communication skills.",
			Roles:       []string{"Employee", "Manager"},
			Start:       "I need advice on improving my communication with clients.",
			SystemMessages: map[string]string{
				"Employee": "You are an employee seeking feedback.",
				"Manager":  "You are a manager giving advice.",
			},
		},
		{
			Name:        "Customer | Salesperson",
			Description: "Customer asking for details about a product from a salesperson.",
			Roles:       []string{"Customer", "Salesperson"},
			Start:       "Can you tell me more about the features of this product?",
			SystemMessages: map[string]string{
				"Customer":    "You are a customer inquiring about a product.",
				"Salesperson": "You are a salesperson explaining product features.",
			},
		},
		{
			Name:        "Doctor | Patient",
			Description: "Doctor and patient discussing symptoms and diagnosis.",
			Roles:       []string{"Doctor", "Patient"},
			Start:       "I've been having a persistent headache for a week.",
			SystemMessages: map[string]string{
				"Doctor":  "You are a doctor diagnosing a patient.",
				"Patient": "You are a patient explaining your symptoms.",
			},
		},
		{
			Name:        "Mentor | Mentee",
			Description: "Mentor provides career guidance to the mentee.",
			Roles:       []string{"Mentor", "Mentee"},
			Start:       "I'm looking for advice on how to advance in my career.",
			SystemMessages: map[string]string{
				"Mentor": "You are a mentor giving career advice.",
				"Mentee": "You are a mentee seeking career guidance.",
			},
		},
		{
			Name:        "Judge | Lawyer",
			Description: "Lawyer presenting a case to the judge.",
			Roles:       []string{"Judge", "Lawyer"},
			Start:       "Your honor, I would like to present evidence in this case.",
			SystemMessages: map[string]string{
				"Judge":  "You are a judge listening to the case.",
				"Lawyer": "You are a lawyer presenting the case.",
			},
		},
		{
			Name:        "Buyer | Seller",
			Description: "Buyer negotiates with seller on price of an item.",
			Roles:       []string{"Buyer", "Seller"},
			Start:       "Can you offer me a better price for this product?",
			SystemMessages: map[string]string{
				"Buyer":  "You are a buyer negotiating a price.",
				"Seller": "You are a seller discussing the deal.",
			},
		},
		{
			Name:        "Negotiator | Opponent",
			Description: "Two negotiators discuss terms of a business deal.",
			Roles:       []string{"Negotiator", "Opponent"},
			Start:       "We would like to propose new terms for the contract.",
			SystemMessages: map[string]string{
				"Negotiator": "You are negotiating terms for a business deal.",
				"Opponent":   "You are an opponent negotiating the terms.",
			},
		},
		{
			Name:        "Counselor | Client",
			Description: "Counselor helps the client manage stress.",
			Roles:       []string{"Counselor", "Client"},
			Start:       "I'm feeling overwhelmed and stressed lately.",
			SystemMessages: map[string]string{
				"Counselor": "You are a counselor helping a client manage stress.",
				"Client":    "You are a client seeking advice on stress management.",
			},
		},
		{
			Name:        "Agent | Client",
			Description: "Agent assists client with a service inquiry.",
			Roles:       []string{"Agent", "Client"},
			Start:       "I need help with my service subscription.",
			SystemMessages: map[string]string{
				"Agent":  "You are an agent assisting a client with service inquiries.",
				"Client": "You are a client asking for help with a service.",
			},
		},
		{
			Name:        "Parent | Child",
			Description: "Parent guiding the child on a school project.",
			Roles:       []string{"Parent", "Child"},
			Start:       "Can you help me with my science project?",
			SystemMessages: map[string]string{
				"Parent": "You are a parent helping your child with a school project.",
				"Child":  "You are a child asking for help with a project.",
			},
		},
		{
			Name:        "Coach | Athlete",
			Description: "Coach gives the athlete feedback on performance.",
			Roles:       []string{"Coach", "Athlete"},
			Start:       "How can I improve my running technique?",
			SystemMessages: map[string]string{
				"Coach":   "You are a coach providing performance advice.",
				"Athlete": "You are an athlete seeking performance improvement tips.",
			},
		},
		{
			Name:        "Host | Guest",
			Description: "Host interviews the guest on a topic.",
			Roles:       []string{"Host", "Guest"},
			Start:       "Welcome to the show! Can you tell us about your latest book?",
			SystemMessages: map[string]string{
				"Host":  "You are a host interviewing a guest.",
				"Guest": "You are a guest being interviewed about your work.",
			},
		},
		{
			Name:        "Consultant | Business Owner",
			Description: "Consultant advises business owner on strategy.",
			Roles:       []string{"Consultant", "Business Owner"},
			Start:       "We need help improving our business growth strategy.",
			SystemMessages: map[string]string{
				"Consultant":     "You are a consultant advising on business strategy.",
				"Business Owner": "You are a business owner seeking strategic advice.",
			},
		},
		{
			Name:        "Moderator | Panelist",
			Description: "Moderator leads a panel discussion.",
			Roles:       []string{"Moderator", "Panelist"},
			Start:       "Can you share your thoughts on the impact of AI in healthcare?",
			SystemMessages: map[string]string{
				"Moderator": "You are a moderator leading a panel discussion.",
				"Panelist":  "You are a panelist sharing insights.",
			},
		},
		{
			Name:        "Investor | Entrepreneur",
			Description: "Entrepreneur pitches business ideas to investor.",
			Roles:       []string{"Investor", "Entrepreneur"},
			Start:       "We are seeking investment for our new startup.",
			SystemMessages: map[string]string{
				"Investor":     "You are an investor evaluating a startup.",
				"Entrepreneur": "You are an entrepreneur pitching your business idea.",
			},
		},
		{
			Name:        "Peer Reviewer | Author",
			Description: "Peer reviewer provides feedback on an author's paper.",
			Roles:       []string{"Peer Reviewer", "Author"},
			Start:       "Here is my feedback on your paper's methodology.",
			SystemMessages: map[string]string{
				"Peer Reviewer": "You are a peer reviewer critiquing a paper.",
				"Author":        "You are an author receiving feedback on your paper.",
			},
		},
		{
			Name:        "Debater | Opponent",
			Description: "Debaters argue opposing views on a topic.",
			Roles:       []string{"Debater", "Opponent"},
			Start:       "I believe climate change is the most pressing issue we face.",
			SystemMessages: map[string]string{
				"Debater":  "You are debating a point of view.",
				"Opponent": "You are opposing the debater's argument.",
			},
		},
		{
			Name:        "Trainer | Trainee",
			Description: "Trainer provides instructions to the trainee.",
			Roles:       []string{"Trainer", "Trainee"},
			Start:       "Let's go over today's fitness routine.",
			SystemMessages: map[string]string{
				"Trainer": "You are a trainer providing instructions.",
				"Trainee": "You are a trainee following the trainer's advice.",
			},
		},
		{
			Name:        "Technician | User",
			Description: "Technician helps user troubleshoot an issue.",
			Roles:       []string{"Technician", "User"},
			Start:       "I'm having trouble with my internet connection.",
			SystemMessages: map[string]string{
				"Technician": "You are a technician assisting with troubleshooting.",
				"User":       "You are a user seeking technical help.",
			},
		},
	}
}
